// Package llm provides LLM-backed text understanding for the paper feed.
//
// Two concerns live here: parsing a free-text query into structured search
// terms (topics, authors, years, institutions) and summarizing abstracts
// into short TLDRs. Both sit on top of a small provider abstraction with
// OpenAI and Anthropic implementations, so callers never touch provider
// API shapes directly.
//
// Example usage:
//
//	provider, _ := llm.NewProvider(cfg)
//	parser := llm.NewQueryParser(provider, logger)
//	parsed, err := parser.Parse(ctx, "recent CRISPR papers by Jennifer Doudna")
package llm

import "context"

// CompletionRequest is a single prompt exchange sent to a provider.
type CompletionRequest struct {
	// System is the system-level instruction (may be empty).
	System string

	// User is the user-level prompt.
	User string

	// JSONOnly requests a structured JSON response where the provider
	// supports enforcing it; otherwise it is a prompt-level hint only.
	JSONOnly bool

	// MaxTokens caps the response length. Zero means the provider default.
	MaxTokens int
}

// Completion is a provider response.
type Completion struct {
	// Content is the raw text of the first completion choice.
	Content string

	// Model is the model that produced the completion.
	Model string

	// InputTokens is the number of prompt tokens consumed.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int
}

// Provider is a minimal chat-completion client.
//
// Implementations handle provider-specific API calls, retries on transient
// failures, and error classification while conforming to this interface.
type Provider interface {
	// Complete sends one prompt exchange and returns the completion.
	// The context is used for cancellation and deadline propagation.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Name returns the provider name (e.g., "openai", "anthropic").
	Name() string

	// Model returns the model identifier being used.
	Model() string
}
