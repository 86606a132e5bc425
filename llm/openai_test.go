package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/actorkit/models"
)

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "m",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"url\":\"https://x\"}"}}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL+"/v1"), WithModel("planner-model"), WithTemperature(0.2))
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)

	assert.Equal(t, `{"url":"https://x"}`, out)
	assert.Equal(t, "planner-model", got["model"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	assert.Len(t, got["messages"], 2)
}

func TestComplete_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, models.ErrCodeLLMAuthFailure},
		{http.StatusTooManyRequests, models.ErrCodeLLMRateLimited},
		{http.StatusBadRequest, models.ErrCodeLLMFailure},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x"}}`))
			}))
			defer srv.Close()

			c := NewClient("k", WithBaseURL(srv.URL), WithMaxRetries(0))
			_, err := c.Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Equal(t, tt.code, models.CodeOf(err))
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Complete(context.Background(), "s", "u")
	assert.Equal(t, models.ErrCodeLLMFailure, models.CodeOf(err))
}
