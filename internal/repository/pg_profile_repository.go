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
var _ ProfileRepository = (*PgProfileRepository)(nil)

// PgProfileRepository is a PostgreSQL implementation of ProfileRepository.
type PgProfileRepository struct {
	db DBTX
}

// NewPgProfileRepository creates a new PostgreSQL profile repository.
func NewPgProfileRepository(db DBTX) *PgProfileRepository {
	return &PgProfileRepository{db: db}
}

// LoadProfile returns the profile saved for a user.
func (r *PgProfileRepository) LoadProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user ID is required")
	}

	query := `
		SELECT topics, authors, updated_at
		FROM user_profiles
		WHERE user_id = $1`

	var (
		topicsJSON  []byte
		authorsJSON []byte
		profile     domain.Profile
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(&topicsJSON, &authorsJSON, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("profile", userID)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := json.Unmarshal(topicsJSON, &profile.Topics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile topics: %w", err)
	}
	if err := json.Unmarshal(authorsJSON, &profile.Authors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile authors: %w", err)
	}

	return &profile, nil
}

// SaveProfile creates or replaces the user's profile.
func (r *PgProfileRepository) SaveProfile(ctx context.Context, userID string, profile *domain.Profile) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}
	if profile == nil {
		return domain.NewValidationError("profile", "profile cannot be nil")
	}
	if len(profile.Topics) == 0 && len(profile.Authors) == 0 {
		return domain.NewValidationError("profile", "at least one topic or author is required")
	}

	topicsJSON, err := json.Marshal(orEmpty(profile.Topics))
	if err != nil {
		return fmt.Errorf("failed to marshal profile topics: %w", err)
	}
	authorsJSON, err := json.Marshal(orEmpty(profile.Authors))
	if err != nil {
		return fmt.Errorf("failed to marshal profile authors: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, topics, authors, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			topics = EXCLUDED.topics,
			authors = EXCLUDED.authors,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, userID, topicsJSON, authorsJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

// ClearProfile removes the user's profile.
func (r *PgProfileRepository) ClearProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}

	return nil
}

// orEmpty keeps JSONB columns as [] rather than null for nil slices.
func orEmpty(terms []string) []string {
	if terms == nil {
		return []string{}
	}
	return terms
}
