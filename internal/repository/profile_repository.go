package repository

import (
	"context"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// ProfileRepository manages saved user search profiles. A profile is the
// default set of topics and authors the feed falls back to when a request
// asks for recommendations instead of carrying explicit terms.
type ProfileRepository interface {
	// LoadProfile returns the profile saved for a user.
	// Returns domain.ErrNotFound when the user has never saved one.
	LoadProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// SaveProfile creates or replaces the user's profile.
	SaveProfile(ctx context.Context, userID string, profile *domain.Profile) error

	// ClearProfile removes the user's profile. Clearing a profile that
	// does not exist is not an error.
	ClearProfile(ctx context.Context, userID string) error
}
