package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/core"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, handler http.HandlerFunc) *LessonWriter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLessonWriter(func(o *Options) {
		o.APIKey = "test-key"
		o.RequestOptions = []option.RequestOption{option.WithBaseURL(srv.URL + "/"), option.WithMaxRetries(0)}
	})
}

func TestLessonWriter_WriteLesson(t *testing.T) {
	var body map[string]any
	w := newTestWriter(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Breathe in.\nYou showed up. "}}]}`))
	})

	text, err := w.WriteLesson(context.Background(), agent.LessonRequest{Context: core.ContextPostWorkout})
	require.NoError(t, err)
	assert.Equal(t, "Breathe in. You showed up.", text)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "openai", w.Info().Provider)
}

func TestLessonWriter_APIError(t *testing.T) {
	w := newTestWriter(t, func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusUnauthorized)
		_, _ = rw.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := w.WriteLesson(context.Background(), agent.LessonRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestLessonWriter_NoChoices(t *testing.T) {
	w := newTestWriter(t, func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`))
	})

	_, err := w.WriteLesson(context.Background(), agent.LessonRequest{})
	assert.Error(t, err)
}
