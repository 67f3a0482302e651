package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
// Papers are immutable after normalization, so the cache stores the whole
// document as JSONB instead of spreading fields over columns.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

const paperUpsertQuery = `
	INSERT INTO papers (id, document, fetched_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
		document = EXCLUDED.document,
		fetched_at = EXCLUDED.fetched_at`

// Get returns a cached paper document.
func (r *PgPaperRepository) Get(ctx context.Context, id string) (*domain.Paper, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "paper ID is required")
	}

	var document []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM papers WHERE id = $1`, id).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	var paper domain.Paper
	if err := json.Unmarshal(document, &paper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paper document: %w", err)
	}

	return &paper, nil
}

// Save inserts or replaces one paper document.
func (r *PgPaperRepository) Save(ctx context.Context, paper *domain.Paper) error {
	if paper == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.ID == "" {
		return domain.NewValidationError("id", "paper ID is required")
	}

	document, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("failed to marshal paper document: %w", err)
	}

	if _, err := r.db.Exec(ctx, paperUpsertQuery, paper.ID, document, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save paper: %w", err)
	}

	return nil
}

// SaveAll inserts or replaces many paper documents in one batch round trip.
func (r *PgPaperRepository) SaveAll(ctx context.Context, papers []*domain.Paper) error {
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, paper := range papers {
		if paper == nil || paper.ID == "" {
			continue
		}
		document, err := json.Marshal(paper)
		if err != nil {
			return fmt.Errorf("failed to marshal paper document %s: %w", paper.ID, err)
		}
		batch.Queue(paperUpsertQuery, paper.ID, document, now)
	}
	if batch.Len() == 0 {
		return nil
	}

	results := r.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to save paper batch entry %d: %w", i, err)
		}
	}

	return results.Close()
}
