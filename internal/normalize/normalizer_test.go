package normalize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	s.calls++
	return s.summary, s.err
}

func longAbstract() string {
	return strings.Repeat("dopamine signaling modulates reward ", 10)
}

func sampleRecord() papersources.RawRecord {
	return papersources.RawRecord{
		SourceID: "W123",
		DOI:      "10.1000/test",
		Title:    "Effects of CO2 on neurons",
		Abstract: longAbstract(),
		Authors: []papersources.RawAuthor{
			{Name: "Jane Doe", ExternalID: "A1"},
			{Name: "John Smith"},
		},
		Year:          2024,
		Venue:         "Nature",
		CitationCount: 7,
		URL:           "https://example.org/w123",
		Source:        domain.SourceTypeOpenAlex,
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	t.Run("produces a complete paper", func(t *testing.T) {
		n := New(nil, zerolog.Nop())
		paper := n.Normalize(context.Background(), sampleRecord())

		require.NotNil(t, paper)
		assert.Equal(t, "W123", paper.ID)
		assert.Equal(t, "Effects of CO<sub>2</sub> on neurons", paper.Title)
		assert.Equal(t, 2024, paper.Year)
		assert.Equal(t, "Nature", paper.Venue)
		assert.Equal(t, 7, paper.CitationCount)
		assert.Equal(t, "10.1000/test", paper.DOI)
		assert.Equal(t, domain.SourceTypeOpenAlex, paper.Source)
		require.Len(t, paper.Authors, 2)
		assert.Equal(t, "Jane Doe", paper.Authors[0].Name)
		assert.Equal(t, "A1", paper.Authors[0].ExternalID)
		assert.NotEmpty(t, paper.TLDR)
	})

	t.Run("qualifies IDs per source", func(t *testing.T) {
		n := New(nil, zerolog.Nop())

		rec := sampleRecord()
		rec.Source = domain.SourceTypeSemanticScholar
		rec.SourceID = "abc123"
		paper := n.Normalize(context.Background(), rec)
		require.NotNil(t, paper)
		assert.Equal(t, "s2:abc123", paper.ID)

		rec.Source = domain.SourceTypeBioRxiv
		rec.SourceID = "10.1101/2024.01.01.000001"
		paper = n.Normalize(context.Background(), rec)
		require.NotNil(t, paper)
		assert.Equal(t, "biorxiv:10.1101/2024.01.01.000001", paper.ID)
	})

	t.Run("nil for missing title or identifier", func(t *testing.T) {
		n := New(nil, zerolog.Nop())

		noTitle := sampleRecord()
		noTitle.Title = "  "
		assert.Nil(t, n.Normalize(context.Background(), noTitle))

		noID := sampleRecord()
		noID.SourceID = ""
		assert.Nil(t, n.Normalize(context.Background(), noID))
	})

	t.Run("reconstructs inverted abstract", func(t *testing.T) {
		rec := sampleRecord()
		rec.Abstract = ""
		rec.AbstractInverted = map[string][]int{
			"the": {0, 2},
			"cat": {1},
			"sat": {3},
		}

		n := New(nil, zerolog.Nop())
		paper := n.Normalize(context.Background(), rec)

		require.NotNil(t, paper)
		assert.Equal(t, "the cat the sat", paper.Abstract)
	})

	t.Run("formats scientific notation in the abstract", func(t *testing.T) {
		rec := sampleRecord()
		rec.Abstract = "Rates scale as x^2 under elevated CO2 for fifty characters or so."

		n := New(nil, zerolog.Nop())
		paper := n.Normalize(context.Background(), rec)

		require.NotNil(t, paper)
		assert.Contains(t, paper.Abstract, "x<sup>2</sup>")
		assert.Contains(t, paper.Abstract, "CO<sub>2</sub>")
	})

	t.Run("caps authors at ten", func(t *testing.T) {
		rec := sampleRecord()
		rec.Authors = nil
		for i := 0; i < 15; i++ {
			rec.Authors = append(rec.Authors, papersources.RawAuthor{Name: "Author " + string(rune('A'+i))})
		}

		n := New(nil, zerolog.Nop())
		paper := n.Normalize(context.Background(), rec)

		require.NotNil(t, paper)
		assert.Len(t, paper.Authors, MaxAuthors)
	})
}

func TestNormalizer_TLDR(t *testing.T) {
	t.Run("uses summarizer when available", func(t *testing.T) {
		sum := &stubSummarizer{summary: "A concise summary."}
		n := New(sum, zerolog.Nop())

		paper := n.Normalize(context.Background(), sampleRecord())

		require.NotNil(t, paper)
		assert.Equal(t, "A concise summary.", paper.TLDR)
		assert.Equal(t, 1, sum.calls)
	})

	t.Run("falls back to truncation on summarizer failure", func(t *testing.T) {
		sum := &stubSummarizer{err: errors.New("llm unavailable")}
		n := New(sum, zerolog.Nop())

		paper := n.Normalize(context.Background(), sampleRecord())

		require.NotNil(t, paper)
		assert.NotEmpty(t, paper.TLDR)
		assert.True(t, strings.HasSuffix(paper.TLDR, "..."))
		assert.LessOrEqual(t, len(paper.TLDR), FallbackTLDRLength+3)
	})

	t.Run("no TLDR for short abstracts", func(t *testing.T) {
		sum := &stubSummarizer{summary: "should not be called"}
		rec := sampleRecord()
		rec.Abstract = "Too short."

		n := New(sum, zerolog.Nop())
		paper := n.Normalize(context.Background(), rec)

		require.NotNil(t, paper)
		assert.Empty(t, paper.TLDR)
		assert.Zero(t, sum.calls)
	})

	t.Run("no TLDR without abstract", func(t *testing.T) {
		rec := sampleRecord()
		rec.Abstract = ""

		n := New(nil, zerolog.Nop())
		paper := n.Normalize(context.Background(), rec)

		require.NotNil(t, paper)
		assert.Empty(t, paper.TLDR)
	})
}

func TestNormalizer_NormalizeAll(t *testing.T) {
	n := New(nil, zerolog.Nop())

	good := sampleRecord()
	bad := sampleRecord()
	bad.Title = ""

	papers := n.NormalizeAll(context.Background(), []papersources.RawRecord{good, bad})

	require.Len(t, papers, 1)
	assert.Equal(t, "W123", papers[0].ID)
}
