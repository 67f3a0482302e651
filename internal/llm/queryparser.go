package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ParsedQuery is the structured form of a free-text search query.
type ParsedQuery struct {
	// Keywords are the research topics to search for.
	Keywords []string `json:"keywords"`

	// Authors are author names the query asks for, if any.
	Authors []string `json:"authors"`

	// Years are publication years mentioned in the query, if any.
	Years []int `json:"years"`

	// Institutions are universities or labs mentioned in the query, if any.
	Institutions []string `json:"institutions"`
}

// IsEmpty reports whether the parse produced nothing usable.
func (q ParsedQuery) IsEmpty() bool {
	return len(q.Keywords) == 0 && len(q.Authors) == 0
}

// QueryParser turns free-text search queries into structured terms using an
// LLM provider. A parse failure is not fatal; callers fall back to treating
// the raw query as a topic list.
type QueryParser struct {
	provider Provider
	logger   zerolog.Logger
}

// NewQueryParser creates a parser on top of the given provider.
func NewQueryParser(provider Provider, logger zerolog.Logger) *QueryParser {
	return &QueryParser{
		provider: provider,
		logger:   logger.With().Str("component", "queryparser").Logger(),
	}
}

const queryParserSystemPrompt = `You are a search query analyst for an academic paper search engine. ` +
	`Given a user's free-text query, identify the research topics, author names, ` +
	`publication years, and institutions it mentions.

You MUST respond with valid JSON in exactly this format:
{"keywords": ["topic1", "topic2"], "authors": ["Full Name"], "years": [2023], "institutions": ["University Name"]}

Guidelines:
1. Keywords are searchable research topics, not filler words. Prefer specific scientific terminology.
2. Authors must be personal names the user explicitly asked for. Never invent names.
3. Years must be explicit in the query. A phrase like "recent" is not a year.
4. Omit a field's contents (use an empty array) rather than guessing.`

// Parse extracts structured search terms from a free-text query.
//
// The provider is asked for a JSON-only response; anything that fails to
// parse or contains no usable terms is an error so the caller can fall back.
func (p *QueryParser) Parse(ctx context.Context, query string) (ParsedQuery, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ParsedQuery{}, fmt.Errorf("queryparser: empty query")
	}

	var sb strings.Builder
	sb.WriteString("Analyze this search query and extract its structured parts.\n\n")
	sb.WriteString("Query:\n---\n")
	sb.WriteString(query)
	sb.WriteString("\n---")

	resp, err := p.provider.Complete(ctx, CompletionRequest{
		System:   queryParserSystemPrompt,
		User:     sb.String(),
		JSONOnly: true,
	})
	if err != nil {
		return ParsedQuery{}, fmt.Errorf("queryparser: completion via %s failed: %w", p.provider.Name(), err)
	}

	var parsed ParsedQuery
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		p.logger.Warn().Err(err).Str("provider", p.provider.Name()).Msg("query parse returned invalid JSON")
		return ParsedQuery{}, fmt.Errorf("queryparser: failed to parse LLM response as JSON: %w", err)
	}

	if parsed.IsEmpty() {
		return ParsedQuery{}, fmt.Errorf("queryparser: LLM response contains no keywords or authors")
	}

	p.logger.Debug().
		Int("keywords", len(parsed.Keywords)).
		Int("authors", len(parsed.Authors)).
		Str("model", resp.Model).
		Msg("query parsed")

	return parsed, nil
}
