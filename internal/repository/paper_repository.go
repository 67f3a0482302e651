package repository

import (
	"context"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// PaperRepository is the paper document cache. Normalized papers are
// stored whole as JSONB keyed by their qualified ID, so a paper served in
// any feed can be re-hydrated later without another upstream call.
type PaperRepository interface {
	// Get returns a cached paper document.
	// Returns domain.ErrNotFound on a cache miss.
	Get(ctx context.Context, id string) (*domain.Paper, error)

	// Save inserts or replaces one paper document.
	Save(ctx context.Context, paper *domain.Paper) error

	// SaveAll inserts or replaces many paper documents in one batch.
	// Papers without an ID are skipped.
	SaveAll(ctx context.Context, papers []*domain.Paper) error
}
