// Package normalize turns raw source records into canonical papers.
//
// Every record from every source funnels through one Normalizer, so
// abstract reconstruction, scientific text formatting, author capping and
// TLDR derivation happen exactly once and identically regardless of where
// a record came from.
package normalize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
)

const (
	// MaxAuthors caps how many authors a normalized paper keeps.
	MaxAuthors = 10

	// MinAbstractForSummary is the minimum abstract length worth
	// summarizing. Shorter abstracts get no TLDR at all.
	MinAbstractForSummary = 50

	// FallbackTLDRLength is the truncation limit used when no summarizer
	// is available or summarization fails.
	FallbackTLDRLength = 200
)

// Summarizer produces a short summary of the given text. Implementations
// may call an LLM; failures must return an error rather than partial text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, sentences int) (string, error)
}

// Normalizer converts raw source records into domain papers.
type Normalizer struct {
	summarizer Summarizer
	logger     zerolog.Logger
}

// New creates a Normalizer. summarizer may be nil, in which case TLDRs
// always come from truncation.
func New(summarizer Summarizer, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		summarizer: summarizer,
		logger:     logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize converts one raw record into a Paper. Returns nil for records
// that cannot become a valid paper (no title, or no usable identifier);
// such records are dropped silently by callers.
func (n *Normalizer) Normalize(ctx context.Context, rec papersources.RawRecord) *domain.Paper {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return nil
	}

	id := domain.QualifiedID(rec.Source, rec.SourceID)
	if id == "" {
		return nil
	}

	abstract := strings.TrimSpace(rec.Abstract)
	if abstract == "" && rec.AbstractInverted != nil {
		abstract = ReconstructInvertedAbstract(rec.AbstractInverted)
	}

	title = FormatScientificText(title)
	abstract = FormatScientificText(abstract)

	authors := make([]domain.Author, 0, min(len(rec.Authors), MaxAuthors))
	for i, a := range rec.Authors {
		if i >= MaxAuthors {
			break
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: name, ExternalID: a.ExternalID})
	}

	return &domain.Paper{
		ID:            id,
		Title:         title,
		Abstract:      abstract,
		Authors:       authors,
		Year:          rec.Year,
		Venue:         rec.Venue,
		CitationCount: rec.CitationCount,
		URL:           rec.URL,
		DOI:           rec.DOI,
		TLDR:          n.tldr(ctx, abstract),
		Source:        rec.Source,
	}
}

// NormalizeAll converts a batch of raw records, dropping unusable ones.
func (n *Normalizer) NormalizeAll(ctx context.Context, recs []papersources.RawRecord) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(recs))
	dropped := 0
	for _, rec := range recs {
		p := n.Normalize(ctx, rec)
		if p == nil {
			dropped++
			continue
		}
		papers = append(papers, p)
	}
	if dropped > 0 {
		n.logger.Debug().Int("dropped", dropped).Msg("dropped malformed records")
	}
	return papers
}

// tldr derives the short summary. Abstracts under the minimum length get
// none. The summarizer is tried first; on failure or absence the abstract
// is truncated at a word boundary instead.
func (n *Normalizer) tldr(ctx context.Context, abstract string) string {
	if len(abstract) < MinAbstractForSummary {
		return ""
	}

	if n.summarizer != nil {
		summary, err := n.summarizer.Summarize(ctx, abstract, 2)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		if err != nil {
			n.logger.Debug().Err(err).Msg("summarizer failed, falling back to truncation")
		}
	}

	return TruncateAtWordBoundary(abstract, FallbackTLDRLength)
}
