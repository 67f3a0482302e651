// Package domain defines the core entities of the paper feed service:
// papers, query keys, user documents, and the shared error taxonomy.
package domain

import (
	"strings"
)

// SourceType identifies the upstream source a paper came from.
type SourceType string

// Known paper sources.
const (
	// SourceTypeOpenAlex is the OpenAlex scholarly index (primary source).
	SourceTypeOpenAlex SourceType = "openalex"

	// SourceTypeSemanticScholar is the Semantic Scholar Graph API (secondary index).
	SourceTypeSemanticScholar SourceType = "semantic_scholar"

	// SourceTypeBioRxiv is the bioRxiv preprint repository (date-bucketed source).
	SourceTypeBioRxiv SourceType = "biorxiv"
)

// Author represents a paper author. ExternalID is the source-internal
// author identifier when the source exposes one (e.g. an OpenAlex A-id).
type Author struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
}

// Paper is the canonical, immutable representation of an academic paper
// after normalization. A Paper is created once by the normalizer and is
// never mutated afterwards; it may be cached, serialized, and re-hydrated
// by its ID without re-fetching.
type Paper struct {
	// ID is the source-qualified unique identifier, e.g. "W2741809807"
	// for OpenAlex or "s2:649def34f8be52c8b66281af98ae884c09aef38b" for
	// Semantic Scholar. IDs are unique across sources within one feed;
	// collisions between sources resolve first-seen-wins.
	ID string `json:"paperId"`

	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`

	// Authors is capped at ten entries by the normalizer.
	Authors []Author `json:"authors"`

	Year          int    `json:"year,omitempty"`
	Venue         string `json:"venue,omitempty"`
	CitationCount int    `json:"citationCount"`
	URL           string `json:"url,omitempty"`
	DOI           string `json:"doi,omitempty"`

	// TLDR is a short derived summary of the abstract. Empty when the
	// abstract is missing or too short to summarize.
	TLDR string `json:"tldr,omitempty"`

	Source SourceType `json:"source"`
}

// QualifiedID builds a source-qualified paper ID from a source's native
// identifier. OpenAlex work IDs are already globally unique and keep
// their native form; other sources are prefixed to avoid collisions.
// Returns empty string when the native ID is empty.
func QualifiedID(source SourceType, nativeID string) string {
	nativeID = strings.TrimSpace(nativeID)
	if nativeID == "" {
		return ""
	}

	switch source {
	case SourceTypeOpenAlex:
		return nativeID
	case SourceTypeSemanticScholar:
		return "s2:" + nativeID
	case SourceTypeBioRxiv:
		return "biorxiv:" + strings.ToLower(nativeID)
	default:
		return string(source) + ":" + nativeID
	}
}

// HasIdentifier returns true if the paper has a usable identifier.
func (p *Paper) HasIdentifier() bool {
	return p.ID != ""
}
