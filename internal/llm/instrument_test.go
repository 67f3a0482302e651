package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecorder struct {
	operation string
	model     string
	errorType string
	succeeded int
	failed    int
}

func (r *stubRecorder) RecordLLMRequest(operation, model string, durationSeconds float64) {
	r.operation = operation
	r.model = model
	r.succeeded++
}

func (r *stubRecorder) RecordLLMRequestFailed(operation, model, errorType string) {
	r.operation = operation
	r.model = model
	r.errorType = errorType
	r.failed++
}

func TestInstrument(t *testing.T) {
	t.Run("nil recorder returns provider unchanged", func(t *testing.T) {
		stub := &stubProvider{content: "ok"}
		assert.Same(t, Provider(stub), Instrument(stub, "query_parse", nil))
	})

	t.Run("records successful completion", func(t *testing.T) {
		rec := &stubRecorder{}
		provider := Instrument(&stubProvider{content: "ok"}, "query_parse", rec)

		resp, err := provider.Complete(context.Background(), CompletionRequest{User: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, 1, rec.succeeded)
		assert.Equal(t, "query_parse", rec.operation)
		assert.Equal(t, "stub-model", rec.model)
	})

	t.Run("records failed completion", func(t *testing.T) {
		rec := &stubRecorder{}
		stub := &stubProvider{err: &APIError{Provider: "stub", StatusCode: 429}}
		provider := Instrument(stub, "summarize", rec)

		_, err := provider.Complete(context.Background(), CompletionRequest{User: "hi"})
		require.Error(t, err)
		assert.Equal(t, 1, rec.failed)
		assert.Equal(t, 0, rec.succeeded)
		assert.Equal(t, "rate_limited", rec.errorType)
	})
}

func TestCompletionErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"rate limited", &APIError{StatusCode: 429}, "rate_limited"},
		{"server error", &APIError{StatusCode: 503}, "server_error"},
		{"network", &APIError{StatusCode: 0}, "network"},
		{"client error", &APIError{StatusCode: 400}, "api_error"},
		{"plain error", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, completionErrorType(tt.err))
		})
	}
}
