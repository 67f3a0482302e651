package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// PostgreSQL error codes.
const (
	pgErrForeignKeyViolation = "23503"
	pgErrUniqueViolation     = "23505"
)

// Compile-time interface verification.
var _ FolderRepository = (*PgFolderRepository)(nil)

// PgFolderRepository is a PostgreSQL implementation of FolderRepository.
type PgFolderRepository struct {
	db DBTX
}

// NewPgFolderRepository creates a new PostgreSQL folder repository.
func NewPgFolderRepository(db DBTX) *PgFolderRepository {
	return &PgFolderRepository{db: db}
}

// Create inserts a new folder.
func (r *PgFolderRepository) Create(ctx context.Context, folder *domain.Folder) (*domain.Folder, error) {
	if folder == nil {
		return nil, domain.NewValidationError("folder", "folder cannot be nil")
	}
	if folder.UserID == "" {
		return nil, domain.NewValidationError("user_id", "user ID is required")
	}
	folder.Name = strings.TrimSpace(folder.Name)
	if folder.Name == "" {
		return nil, domain.NewValidationError("name", "folder name is required")
	}

	if folder.ID == uuid.Nil {
		folder.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO folders (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, folder.ID, folder.UserID, folder.Name, now, now).
		Scan(&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return nil, fmt.Errorf("folder %q: %w", folder.Name, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return folder, nil
}

// GetByID returns one folder with its saved paper IDs.
func (r *PgFolderRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Folder, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user ID is required")
	}

	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM folders
		WHERE id = $1 AND user_id = $2`

	var folder domain.Folder
	err := r.db.QueryRow(ctx, query, id, userID).
		Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("folder", id.String())
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT paper_id FROM folder_papers WHERE folder_id = $1 ORDER BY added_at DESC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load folder papers: %w", err)
	}
	defer rows.Close()

	folder.PaperIDs = []string{}
	for rows.Next() {
		var paperID string
		if err := rows.Scan(&paperID); err != nil {
			return nil, fmt.Errorf("failed to scan folder paper: %w", err)
		}
		folder.PaperIDs = append(folder.PaperIDs, paperID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folder papers: %w", err)
	}

	return &folder, nil
}

// List returns the user's folders, newest first.
func (r *PgFolderRepository) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Folder, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user ID is required")
	}
	applyPaginationDefaults(&limit, &offset)

	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM folders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	folders := []*domain.Folder{}
	for rows.Next() {
		var folder domain.Folder
		if err := rows.Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, &folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}

	return folders, nil
}

// Rename changes a folder's name.
func (r *PgFolderRepository) Rename(ctx context.Context, userID string, id uuid.UUID, name string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("name", "folder name is required")
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE folders SET name = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		name, time.Now().UTC(), id, userID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("folder %q: %w", name, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("folder", id.String())
	}

	return nil
}

// Delete removes a folder. Memberships go with it via ON DELETE CASCADE.
func (r *PgFolderRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM folders WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("folder", id.String())
	}

	return nil
}

// AddPaper saves a paper into a folder the user owns.
func (r *PgFolderRepository) AddPaper(ctx context.Context, userID string, folderID uuid.UUID, paperID string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}
	if paperID == "" {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}

	// Membership rows come from an ownership-checked SELECT, so a zero
	// row count means either a missing folder or an existing membership.
	// The conflict clause makes the second case a no-op, leaving the
	// missing-folder case to disambiguate below.
	query := `
		INSERT INTO folder_papers (folder_id, paper_id, added_at)
		SELECT f.id, $3, $4
		FROM folders f
		WHERE f.id = $1 AND f.user_id = $2
		ON CONFLICT (folder_id, paper_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, folderID, userID, paperID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add paper to folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM folders WHERE id = $1 AND user_id = $2)`,
			folderID, userID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check folder ownership: %w", err)
		}
		if !exists {
			return domain.NewNotFoundError("folder", folderID.String())
		}
	}

	return nil
}

// RemovePaper removes a paper from a folder the user owns.
func (r *PgFolderRepository) RemovePaper(ctx context.Context, userID string, folderID uuid.UUID, paperID string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "user ID is required")
	}
	if paperID == "" {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}

	query := `
		DELETE FROM folder_papers fp
		USING folders f
		WHERE fp.folder_id = f.id AND f.id = $1 AND f.user_id = $2 AND fp.paper_id = $3`

	tag, err := r.db.Exec(ctx, query, folderID, userID, paperID)
	if err != nil {
		return fmt.Errorf("failed to remove paper from folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("folder paper", paperID)
	}

	return nil
}
