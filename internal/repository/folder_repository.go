package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// FolderRepository manages user folders and the papers saved into them.
// Folder names are unique per user; paper membership is idempotent.
type FolderRepository interface {
	// Create inserts a new folder. Returns domain.ErrAlreadyExists when
	// the user already has a folder with the same name.
	Create(ctx context.Context, folder *domain.Folder) (*domain.Folder, error)

	// GetByID returns one folder with its saved paper IDs.
	// Returns domain.ErrNotFound when the folder does not exist or
	// belongs to a different user.
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Folder, error)

	// List returns the user's folders, newest first, without membership.
	List(ctx context.Context, userID string, limit, offset int) ([]*domain.Folder, error)

	// Rename changes a folder's name. Returns domain.ErrNotFound for a
	// missing folder and domain.ErrAlreadyExists on a name collision.
	Rename(ctx context.Context, userID string, id uuid.UUID, name string) error

	// Delete removes a folder and its memberships.
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	// AddPaper saves a paper into a folder. Adding a paper that is
	// already in the folder is not an error.
	AddPaper(ctx context.Context, userID string, folderID uuid.UUID, paperID string) error

	// RemovePaper removes a paper from a folder.
	// Returns domain.ErrNotFound when the paper is not in the folder.
	RemovePaper(ctx context.Context, userID string, folderID uuid.UUID, paperID string) error
}
