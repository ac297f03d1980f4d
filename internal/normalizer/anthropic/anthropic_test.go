package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/normalizer"
	"github.com/nadzzz/readaloud/internal/speech"
)

const messageReply = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-haiku-latest",
  "content": [{"type": "text", "text": "Plain "}, {"type": "text", "text": "words."}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 12, "output_tokens": 3}
}`

func newTestNormalizer(t *testing.T, h http.HandlerFunc) *Normalizer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.AnthropicConfig{BaseURL: srv.URL, Model: "claude-test"}, nil, srv.Client())
}

func TestNormalize_JoinsTextBlocks(t *testing.T) {
	n := newTestNormalizer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "an-key", r.Header.Get("X-Api-Key"))

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, defaultMaxTokens, body.MaxTokens)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.True(t, strings.HasSuffix(body.Messages[0].Content[0].Text, "\n\n| a | b |"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply))
	})

	out, err := n.Normalize(context.Background(), "| a | b |", normalizer.Opts{APIKey: "an-key"})
	require.NoError(t, err)
	assert.Equal(t, "Plain words.", out)
}

func TestNormalize_RateLimitIsNotRetriedBySDK(t *testing.T) {
	var calls atomic.Int32
	n := newTestNormalizer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow"}}`))
	})

	_, err := n.Normalize(context.Background(), "doc", normalizer.Opts{APIKey: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, speech.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNormalize_ServerError(t *testing.T) {
	n := newTestNormalizer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	})

	_, err := n.Normalize(context.Background(), "doc", normalizer.Opts{APIKey: "k"})
	var se *speech.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, speech.KindRemoteService, se.Kind)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestNormalize_NoTextContent(t *testing.T) {
	n := newTestNormalizer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m","type":"message","role":"assistant","model":"x","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`))
	})

	_, err := n.Normalize(context.Background(), "doc", normalizer.Opts{APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
