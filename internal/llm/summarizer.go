package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// summaryMaxTokens caps TLDR responses; a few sentences never need more.
const summaryMaxTokens = 256

// Summarizer produces short plain-language summaries of paper abstracts.
type Summarizer struct {
	provider Provider
	logger   zerolog.Logger
}

// NewSummarizer creates a summarizer on top of the given provider.
func NewSummarizer(provider Provider, logger zerolog.Logger) *Summarizer {
	return &Summarizer{
		provider: provider,
		logger:   logger.With().Str("component", "summarizer").Logger(),
	}
}

// Summarize condenses text into at most the given number of sentences.
// The result is plain text with no preamble.
func (s *Summarizer) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarizer: empty text")
	}
	if sentences <= 0 {
		sentences = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following paper abstract in at most %d sentence(s). ", sentences)
	sb.WriteString("Keep the key finding and method. Respond with the summary text only, no preamble.\n\n")
	sb.WriteString("Abstract:\n---\n")
	sb.WriteString(text)
	sb.WriteString("\n---")

	resp, err := s.provider.Complete(ctx, CompletionRequest{
		User:      sb.String(),
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarizer: completion via %s failed: %w", s.provider.Name(), err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("summarizer: LLM returned empty summary")
	}

	return summary, nil
}
