package assess

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func apiError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "server_error"},
	})
}

func newTestAssessor(t *testing.T, handler http.HandlerFunc) *OpenAIAssessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAIAssessor(Options{
		APIKey:          "test-key",
		BaseURL:         srv.URL + "/v1",
		Temperature:     0.2,
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
	})
}

func TestOpenAIAssessor_Assess(t *testing.T) {
	var got map[string]any
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("Result: ✅"))
	})

	text, err := a.Assess(context.Background(), "check this drawing")
	require.NoError(t, err)
	assert.Equal(t, "Result: ✅", text)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 0.0001)
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "check this drawing", messages[0].(map[string]any)["content"])
}

func TestOpenAIAssessor_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			apiError(w, http.StatusServiceUnavailable, "overloaded")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("ok"))
	})

	text, err := a.Assess(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIAssessor_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusTooManyRequests, "slow down")
	})

	_, err := a.Assess(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIAssessor_FatalNotRetried(t *testing.T) {
	var calls atomic.Int32
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusUnauthorized, "bad key")
	})

	_, err := a.Assess(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIAssessor_NoChoices(t *testing.T) {
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	})

	_, err := a.Assess(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenAIAssessor_EmptyContent(t *testing.T) {
	var calls atomic.Int32
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion(" \n"))
	})

	_, err := a.Assess(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIAssessor_CancelledContext(t *testing.T) {
	a := newTestAssessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("late"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Assess(ctx, "p")
	assert.Error(t, err)
}
