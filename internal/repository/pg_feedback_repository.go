package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// Compile-time interface verification.
var _ FeedbackRepository = (*PgFeedbackRepository)(nil)

// PgFeedbackRepository is a PostgreSQL implementation of FeedbackRepository.
type PgFeedbackRepository struct {
	db DBTX
}

// NewPgFeedbackRepository creates a new PostgreSQL feedback repository.
func NewPgFeedbackRepository(db DBTX) *PgFeedbackRepository {
	return &PgFeedbackRepository{db: db}
}

// Rate records or replaces the user's rating of a paper.
func (r *PgFeedbackRepository) Rate(ctx context.Context, userID, paperID string, action domain.FeedbackAction) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}
	if paperID == "" {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}
	if action != domain.FeedbackLiked && action != domain.FeedbackDisliked {
		return domain.NewValidationError("action", fmt.Sprintf("unknown feedback action: %s", action))
	}

	query := `
		INSERT INTO paper_feedback (user_id, paper_id, action, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, paper_id) DO UPDATE SET
			action = EXCLUDED.action,
			created_at = EXCLUDED.created_at`

	if _, err := r.db.Exec(ctx, query, userID, paperID, string(action), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

// Unrate removes the user's rating of a paper.
func (r *PgFeedbackRepository) Unrate(ctx context.Context, userID, paperID string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}
	if paperID == "" {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM paper_feedback WHERE user_id = $1 AND paper_id = $2`,
		userID, paperID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("feedback", paperID)
	}

	return nil
}

// Load returns all of the user's ratings grouped by action.
func (r *PgFeedbackRepository) Load(ctx context.Context, userID string) (*domain.Feedback, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user ID is required")
	}

	rows, err := r.db.Query(ctx,
		`SELECT paper_id, action FROM paper_feedback WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	defer rows.Close()

	feedback := &domain.Feedback{
		Liked:    []string{},
		Disliked: []string{},
	}
	for rows.Next() {
		var paperID, action string
		if err := rows.Scan(&paperID, &action); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		switch domain.FeedbackAction(action) {
		case domain.FeedbackLiked:
			feedback.Liked = append(feedback.Liked, paperID)
		case domain.FeedbackDisliked:
			feedback.Disliked = append(feedback.Disliked, paperID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}

	return feedback, nil
}

// RatedIDs returns the set of paper IDs the user has rated either way.
func (r *PgFeedbackRepository) RatedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user ID is required")
	}

	rows, err := r.db.Query(ctx,
		`SELECT paper_id FROM paper_feedback WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load rated IDs: %w", err)
	}
	defer rows.Close()

	rated := make(map[string]bool)
	for rows.Next() {
		var paperID string
		if err := rows.Scan(&paperID); err != nil {
			return nil, fmt.Errorf("failed to scan rated ID: %w", err)
		}
		rated[paperID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rated IDs: %w", err)
	}

	return rated, nil
}
