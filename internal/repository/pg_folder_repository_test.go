package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

func TestPgFolderRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates folder and assigns ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO folders").
			WithArgs(pgxmock.AnyArg(), "user-1", "Reading list", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		folder, err := repo.Create(ctx, &domain.Folder{UserID: "user-1", Name: "Reading list"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, folder.ID)
		assert.Equal(t, now, folder.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns already exists on duplicate name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)

		mock.ExpectQuery("INSERT INTO folders").
			WithArgs(pgxmock.AnyArg(), "user-1", "Reading list", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

		folder, err := repo.Create(ctx, &domain.Folder{UserID: "user-1", Name: "Reading list"})
		assert.Nil(t, folder)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for blank name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		folder, err := repo.Create(ctx, &domain.Folder{UserID: "user-1", Name: "   "})

		assert.Nil(t, folder)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "name", validationErr.Field)
	})
}

func TestPgFolderRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns folder with its paper IDs", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT (.+) FROM folders").
			WithArgs(id, "user-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "created_at", "updated_at"}).
				AddRow(id, "user-1", "Reading list", now, now))

		mock.ExpectQuery("SELECT paper_id FROM folder_papers").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"paper_id"}).
				AddRow("W1").
				AddRow("s2:abc"))

		folder, err := repo.GetByID(ctx, "user-1", id)
		require.NoError(t, err)
		assert.Equal(t, "Reading list", folder.Name)
		assert.Equal(t, []string{"W1", "s2:abc"}, folder.PaperIDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for another user's folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT (.+) FROM folders").
			WithArgs(id, "user-2").
			WillReturnError(pgx.ErrNoRows)

		folder, err := repo.GetByID(ctx, "user-2", id)
		assert.Nil(t, folder)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFolderRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("lists folders with pagination defaults", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT (.+) FROM folders").
			WithArgs("user-1", defaultListLimit, 0).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "created_at", "updated_at"}).
				AddRow(uuid.New(), "user-1", "Methods", now, now).
				AddRow(uuid.New(), "user-1", "To read", now, now))

		folders, err := repo.List(ctx, "user-1", 0, -5)
		require.NoError(t, err)
		assert.Len(t, folders, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice for user without folders", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM folders").
			WithArgs("user-1", 10, 0).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "created_at", "updated_at"}))

		folders, err := repo.List(ctx, "user-1", 10, 0)
		require.NoError(t, err)
		assert.NotNil(t, folders)
		assert.Empty(t, folders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFolderRepository_Rename(t *testing.T) {
	ctx := context.Background()

	t.Run("renames folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE folders SET name").
			WithArgs("New name", pgxmock.AnyArg(), id, "user-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Rename(ctx, "user-1", id, "New name"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE folders SET name").
			WithArgs("New name", pgxmock.AnyArg(), id, "user-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.Rename(ctx, "user-1", id, "New name")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns already exists on name collision", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE folders SET name").
			WithArgs("Methods", pgxmock.AnyArg(), id, "user-1").
			WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

		err = repo.Rename(ctx, "user-1", id, "Methods")
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFolderRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM folders").
			WithArgs(id, "user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, "user-1", id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM folders").
			WithArgs(id, "user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.Delete(ctx, "user-1", id)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFolderRepository_AddPaper(t *testing.T) {
	ctx := context.Background()

	t.Run("adds paper to owned folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("INSERT INTO folder_papers").
			WithArgs(id, "user-1", "W1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.AddPaper(ctx, "user-1", id, "W1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("adding an already saved paper is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("INSERT INTO folder_papers").
			WithArgs(id, "user-1", "W1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(id, "user-1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, repo.AddPaper(ctx, "user-1", id, "W1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("INSERT INTO folder_papers").
			WithArgs(id, "user-1", "W1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(id, "user-1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		err = repo.AddPaper(ctx, "user-1", id, "W1")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFolderRepository_RemovePaper(t *testing.T) {
	ctx := context.Background()

	t.Run("removes paper from folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM folder_papers").
			WithArgs(id, "user-1", "W1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.RemovePaper(ctx, "user-1", id, "W1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when paper is not in folder", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFolderRepository(mock)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM folder_papers").
			WithArgs(id, "user-1", "W1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.RemovePaper(ctx, "user-1", id, "W1")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
