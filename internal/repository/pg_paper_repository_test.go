package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

func newCachedPaper(id string) *domain.Paper {
	return &domain.Paper{
		ID:       id,
		Title:    "Synaptic tagging revisited",
		Abstract: "A revisit of the synaptic tagging and capture hypothesis.",
		Authors: []domain.Author{
			{Name: "A. Researcher"},
			{Name: "B. Scientist"},
		},
		Year:          2024,
		Venue:         "Nature Neuroscience",
		CitationCount: 12,
		Source:        domain.SourceTypeOpenAlex,
	}
}

func TestPgPaperRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns cached paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newCachedPaper("W123")
		document, err := json.Marshal(paper)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT document FROM papers WHERE id = \\$1").
			WithArgs("W123").
			WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(document))

		result, err := repo.Get(ctx, "W123")
		require.NoError(t, err)
		assert.Equal(t, paper.Title, result.Title)
		assert.Len(t, result.Authors, 2)
		assert.Equal(t, domain.SourceTypeOpenAlex, result.Source)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found on cache miss", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		mock.ExpectQuery("SELECT document FROM papers WHERE id = \\$1").
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.Get(ctx, "missing")
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		result, err := repo.Get(ctx, "")

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
	})
}

func TestPgPaperRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts paper document", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newCachedPaper("W123")

		mock.ExpectExec("INSERT INTO papers").
			WithArgs("W123", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Save(ctx, paper))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for paper without ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		err = repo.Save(ctx, &domain.Paper{Title: "No ID"})

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
	})
}

func TestPgPaperRepository_SaveAll(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts all papers in one batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		papers := []*domain.Paper{
			newCachedPaper("W1"),
			newCachedPaper("s2:abc"),
		}

		expectedBatch := mock.ExpectBatch()
		for _, paper := range papers {
			expectedBatch.ExpectExec("INSERT INTO papers").
				WithArgs(paper.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		require.NoError(t, repo.SaveAll(ctx, papers))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips papers without an ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		papers := []*domain.Paper{
			{Title: "No ID"},
			newCachedPaper("W1"),
			nil,
		}

		expectedBatch := mock.ExpectBatch()
		expectedBatch.ExpectExec("INSERT INTO papers").
			WithArgs("W1", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.SaveAll(ctx, papers))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty input sends no batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		require.NoError(t, repo.SaveAll(ctx, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
