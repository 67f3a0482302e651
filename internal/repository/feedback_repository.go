package repository

import (
	"context"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// FeedbackRepository manages per-user paper ratings. Rated paper IDs feed
// the filter predicate applied when assembling feed pages, so a paper a
// user has liked or disliked is never served to them again.
type FeedbackRepository interface {
	// Rate records or replaces the user's rating of a paper.
	Rate(ctx context.Context, userID, paperID string, action domain.FeedbackAction) error

	// Unrate removes the user's rating of a paper.
	// Returns domain.ErrNotFound when no rating exists.
	Unrate(ctx context.Context, userID, paperID string) error

	// Load returns all of the user's ratings grouped by action.
	Load(ctx context.Context, userID string) (*domain.Feedback, error)

	// RatedIDs returns the set of paper IDs the user has rated either way.
	RatedIDs(ctx context.Context, userID string) (map[string]bool, error)
}
