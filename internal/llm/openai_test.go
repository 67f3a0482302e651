package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL,
	}, 0.2, 5*time.Second, 2)
	p.retryDelay = time.Millisecond
	return p, server
}

func openAIChatBody(content string) chatResponse {
	return chatResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-mini",
		Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: content}},
		},
		Usage: chatUsage{PromptTokens: 42, CompletionTokens: 7},
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Run("sends prompt and returns completion", func(t *testing.T) {
		var gotReq chatRequest
		p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			json.NewEncoder(w).Encode(openAIChatBody(`{"ok":true}`))
		})

		resp, err := p.Complete(context.Background(), CompletionRequest{
			System:   "be terse",
			User:     "hello",
			JSONOnly: true,
		})
		require.NoError(t, err)

		assert.Equal(t, `{"ok":true}`, resp.Content)
		assert.Equal(t, "gpt-4o-mini", resp.Model)
		assert.Equal(t, 42, resp.InputTokens)
		assert.Equal(t, 7, resp.OutputTokens)

		require.Len(t, gotReq.Messages, 2)
		assert.Equal(t, "system", gotReq.Messages[0].Role)
		assert.Equal(t, "be terse", gotReq.Messages[0].Content)
		assert.Equal(t, "user", gotReq.Messages[1].Role)
		require.NotNil(t, gotReq.ResponseFormat)
		assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	})

	t.Run("omits response format without JSONOnly", func(t *testing.T) {
		var gotReq chatRequest
		p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			json.NewEncoder(w).Encode(openAIChatBody("plain text"))
		})

		_, err := p.Complete(context.Background(), CompletionRequest{User: "hello"})
		require.NoError(t, err)
		assert.Nil(t, gotReq.ResponseFormat)
		require.Len(t, gotReq.Messages, 1)
		assert.Equal(t, "user", gotReq.Messages[0].Role)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		var calls atomic.Int32
		p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(openAIChatBody("eventually"))
		})

		resp, err := p.Complete(context.Background(), CompletionRequest{User: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "eventually", resp.Content)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
		})

		_, err := p.Complete(context.Background(), CompletionRequest{User: "hello"})
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "openai", apiErr.Provider)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "bad key", apiErr.Message)
		assert.Equal(t, "invalid_api_key", apiErr.Code)
	})

	t.Run("exhausted retries return last error", func(t *testing.T) {
		p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := p.Complete(context.Background(), CompletionRequest{User: "hello"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exhausted")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		p, _ := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatResponse{ID: "chatcmpl-1"})
		})

		_, err := p.Complete(context.Background(), CompletionRequest{User: "hello"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty choices")
	})
}

func TestOpenAIProvider_Metadata(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"}, 0, 0, -1)

	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, defaultOpenAIModel, p.Model())
	assert.Equal(t, defaultOpenAIBaseURL, p.baseURL)
	assert.Zero(t, p.maxRetries)
}
