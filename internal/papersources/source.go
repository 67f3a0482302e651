// Package papersources provides clients for the upstream academic paper
// sources that feed the aggregator.
//
// Each source (OpenAlex, Semantic Scholar, bioRxiv) implements the
// PaperSource interface and returns RawRecords: the source's native record
// shape mapped onto a common envelope, before normalization. Sources never
// normalize; that is the job of the normalize package, so every source's
// output goes through exactly one formatting and deduplication pipeline.
//
// Example usage:
//
//	source := openalex.New(cfg, httpClient)
//	params := papersources.SearchParams{
//		Topics:     []string{"CRISPR gene editing"},
//		MaxResults: 100,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/scholarstream/paper-feed-service/internal/domain"
)

// SortMode controls upstream result ordering for sources that support it.
type SortMode string

// Supported sort modes.
const (
	// SortRecency orders by publication date, newest first.
	SortRecency SortMode = "recency"

	// SortRelevance orders by citation count, highest first.
	SortRelevance SortMode = "relevance"
)

// SearchParams defines the parameters for searching a paper source.
// Topics and Authors are both optional, but at least one must be set for
// a meaningful search.
type SearchParams struct {
	// Topics are the subject terms to search for. Sources combine them
	// according to their own query syntax (most join with OR).
	Topics []string

	// Authors are author names to filter by. Sources that support author
	// identifiers resolve names to IDs first; unresolved names fall back
	// to free-text search.
	Authors []string

	// SortMode selects recency or relevance ordering. Sources that cannot
	// sort (date-bucketed repositories) ignore it.
	SortMode SortMode

	// DateFrom filters papers published on or after this date.
	// If nil, no lower date bound is applied.
	DateFrom *time.Time

	// DateTo filters papers published on or before this date.
	// If nil, no upper date bound is applied.
	DateTo *time.Time

	// MaxResults limits the number of records returned in a single request.
	// A value of 0 uses the source's default page size.
	MaxResults int

	// Page is the 1-based page number for paginated sources.
	// A value of 0 is treated as page 1.
	Page int
}

// RawAuthor is an author as reported by a source, before normalization.
type RawAuthor struct {
	Name       string
	ExternalID string
}

// RawRecord is one paper record in a source's native shape, mapped onto a
// common envelope. Exactly one of Abstract or AbstractInverted is set for
// records that carry an abstract: OpenAlex returns inverted indexes, the
// other sources return plain text.
type RawRecord struct {
	// SourceID is the source-native identifier (OpenAlex W-id, Semantic
	// Scholar SHA, bioRxiv DOI).
	SourceID string

	DOI      string
	Title    string
	Abstract string

	// AbstractInverted is the OpenAlex inverted-index form of the
	// abstract: token -> positions. Nil for plain-text sources.
	AbstractInverted map[string][]int

	Authors       []RawAuthor
	Year          int
	Date          string
	Venue         string
	CitationCount int
	URL           string

	Source domain.SourceType
}

// SearchResult contains the records from one source search operation.
type SearchResult struct {
	// Records contains the raw records returned by the search.
	// May be empty if no papers match the search criteria.
	Records []RawRecord

	// TotalResults is the total number of papers matching the query,
	// regardless of pagination limits. This value is provided by the
	// source API and may be an estimate for large result sets.
	TotalResults int

	// HasMore indicates whether additional results are available
	// beyond the current page.
	HasMore bool

	// NextPage is the page number to request for the next page of
	// results. Only meaningful when HasMore is true.
	NextPage int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients implement.
type PaperSource interface {
	// Search queries the paper source for records matching the given
	// parameters. The context should be used for cancellation and
	// deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Map source-specific responses to RawRecord
	//   - Include appropriate error wrapping with source context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a specific record by its source-native identifier.
	// Returns domain.ErrNotFound if the record does not exist.
	GetByID(ctx context.Context, id string) (*RawRecord, error)

	// SourceType returns the type identifier for this paper source.
	// Used for attribution, deduplication, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this paper source is currently enabled
	// and available for searches. A source may be disabled due to
	// configuration or missing API keys.
	IsEnabled() bool
}
