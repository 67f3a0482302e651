package llm

import (
	"context"
	"errors"
	"time"
)

// Recorder receives the outcome of each LLM call. The method set matches
// the service metrics registry so wiring stays a one-liner.
type Recorder interface {
	RecordLLMRequest(operation, model string, durationSeconds float64)
	RecordLLMRequestFailed(operation, model, errorType string)
}

// instrumentedProvider reports every completion under a fixed operation
// label. Retries inside the wrapped provider count as one call.
type instrumentedProvider struct {
	Provider
	operation string
	recorder  Recorder
}

// Instrument wraps provider so each completion is recorded under the given
// operation label. A nil recorder returns the provider unchanged.
func Instrument(provider Provider, operation string, recorder Recorder) Provider {
	if recorder == nil {
		return provider
	}
	return &instrumentedProvider{Provider: provider, operation: operation, recorder: recorder}
}

func (ip *instrumentedProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	start := time.Now()
	resp, err := ip.Provider.Complete(ctx, req)
	if err != nil {
		ip.recorder.RecordLLMRequestFailed(ip.operation, ip.Model(), completionErrorType(err))
		return nil, err
	}
	ip.recorder.RecordLLMRequest(ip.operation, ip.Model(), time.Since(start).Seconds())
	return resp, nil
}

// completionErrorType maps a completion error to a bounded metric label.
func completionErrorType(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return "rate_limited"
		case apiErr.StatusCode >= 500:
			return "server_error"
		case apiErr.StatusCode == 0:
			return "network"
		default:
			return "api_error"
		}
	}
	return "error"
}
