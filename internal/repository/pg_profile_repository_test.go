package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

func TestNewPgProfileRepository(t *testing.T) {
	t.Run("creates repository with mock db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestPgProfileRepository_LoadProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("returns profile when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)
		updatedAt := time.Now().UTC()

		rows := pgxmock.NewRows([]string{"topics", "authors", "updated_at"}).
			AddRow([]byte(`["synaptic plasticity","hippocampus"]`), []byte(`["Eric Kandel"]`), updatedAt)

		mock.ExpectQuery("SELECT (.+) FROM user_profiles WHERE user_id = \\$1").
			WithArgs("user-1").
			WillReturnRows(rows)

		profile, err := repo.LoadProfile(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"synaptic plasticity", "hippocampus"}, profile.Topics)
		assert.Equal(t, []string{"Eric Kandel"}, profile.Authors)
		assert.Equal(t, updatedAt, profile.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when no profile saved", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM user_profiles WHERE user_id = \\$1").
			WithArgs("user-1").
			WillReturnError(pgx.ErrNoRows)

		profile, err := repo.LoadProfile(ctx, "user-1")
		assert.Nil(t, profile)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty user ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)
		profile, err := repo.LoadProfile(ctx, "")

		assert.Nil(t, profile)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "user_id", validationErr.Field)
	})
}

func TestPgProfileRepository_SaveProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts profile successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)

		mock.ExpectExec("INSERT INTO user_profiles").
			WithArgs("user-1", []byte(`["optogenetics"]`), []byte(`[]`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.SaveProfile(ctx, "user-1", &domain.Profile{Topics: []string{"optogenetics"}})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil profile", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)
		err = repo.SaveProfile(ctx, "user-1", nil)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "profile", validationErr.Field)
	})

	t.Run("returns validation error for empty profile", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)
		err = repo.SaveProfile(ctx, "user-1", &domain.Profile{})

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "profile", validationErr.Field)
	})
}

func TestPgProfileRepository_ClearProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("clears existing profile", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)

		mock.ExpectExec("DELETE FROM user_profiles").
			WithArgs("user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.ClearProfile(ctx, "user-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clearing a missing profile is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgProfileRepository(mock)

		mock.ExpectExec("DELETE FROM user_profiles").
			WithArgs("user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, repo.ClearProfile(ctx, "user-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
