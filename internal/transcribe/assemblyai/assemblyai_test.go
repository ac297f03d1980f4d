package assemblyai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transcribe"
)

// fakeService emulates the upload, job and status endpoints. statuses are
// returned by successive polls; the last one repeats.
type fakeService struct {
	statuses []string
	jobError string
	polls    atomic.Int32
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aai-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "AUDIO", string(body))
		_, _ = w.Write([]byte(`{"upload_url":"https://cdn.example/upload/1"}`))
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://cdn.example/upload/1", req["audio_url"])
		_, _ = w.Write([]byte(`{"id":"job-1","status":"queued"}`))
	})
	mux.HandleFunc("GET /v2/transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aai-key", r.Header.Get("Authorization"))
		n := int(f.polls.Add(1)) - 1
		if n >= len(f.statuses) {
			n = len(f.statuses) - 1
		}
		resp := map[string]any{"id": "job-1", "status": f.statuses[n]}
		switch f.statuses[n] {
		case StatusCompleted:
			resp["words"] = []map[string]any{
				{"text": "ok", "start": 500, "end": 900, "confidence": 0.99},
				{"text": "then", "start": 950, "end": 1200, "confidence": 0.97},
			}
		case StatusError:
			resp["error"] = f.jobError
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeService, maxPolls int) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(config.AssemblyAIConfig{BaseURL: srv.URL}, WithHTTPClient(srv.Client()), WithPolling(time.Millisecond, maxPolls))
}

func TestWords_ConvertsMillisecondsToSeconds(t *testing.T) {
	f := &fakeService{statuses: []string{StatusCompleted}}
	c := newTestClient(t, f, 5)

	words, err := c.Words(context.Background(), []byte("AUDIO"), transcribe.Opts{APIKey: "aai-key", ContentType: "audio/mpeg"})
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "ok", words[0].Word)
	assert.InDelta(t, 0.5, words[0].Start, 1e-9)
	assert.InDelta(t, 0.9, words[0].End, 1e-9)
	assert.InDelta(t, 1.2, words[1].End, 1e-9)
}

func TestWords_PollsUntilComplete(t *testing.T) {
	f := &fakeService{statuses: []string{StatusQueued, StatusProcessing, StatusProcessing, StatusCompleted}}
	c := newTestClient(t, f, 10)

	words, err := c.Words(context.Background(), []byte("AUDIO"), transcribe.Opts{APIKey: "aai-key"})
	require.NoError(t, err)
	assert.Len(t, words, 2)
	assert.Equal(t, int32(4), f.polls.Load())
}

func TestWords_JobError(t *testing.T) {
	f := &fakeService{statuses: []string{StatusProcessing, StatusError}, jobError: "audio too short"}
	c := newTestClient(t, f, 10)

	_, err := c.Words(context.Background(), []byte("AUDIO"), transcribe.Opts{APIKey: "aai-key"})
	require.Error(t, err)
	assert.Equal(t, speech.KindFallbackService, speech.KindOf(err))
	assert.Contains(t, err.Error(), "audio too short")
}

func TestWords_TimesOutAfterMaxPolls(t *testing.T) {
	f := &fakeService{statuses: []string{StatusProcessing}}
	c := newTestClient(t, f, 3)

	_, err := c.Words(context.Background(), []byte("AUDIO"), transcribe.Opts{APIKey: "aai-key"})
	require.Error(t, err)
	assert.ErrorIs(t, err, speech.ErrFallbackTimeout)
	assert.Equal(t, int32(3), f.polls.Load())
}

func TestWords_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(config.AssemblyAIConfig{BaseURL: srv.URL})
	_, err := c.Words(context.Background(), []byte("AUDIO"), transcribe.Opts{APIKey: "nope"})

	var se *speech.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, speech.KindFallbackService, se.Kind)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestWords_JobWithoutID(t *testing.T) {
	var polled atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"upload_url":"https://cdn.example/upload/1"}`))
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /v2/transcript/", func(http.ResponseWriter, *http.Request) {
		polled.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(config.AssemblyAIConfig{BaseURL: srv.URL}, WithPolling(time.Millisecond, 3))
	_, err := c.Words(context.Background(), []byte("AUDIO"), transcribe.Opts{APIKey: "aai-key"})

	require.Error(t, err)
	assert.Equal(t, speech.KindFallbackService, speech.KindOf(err))
	assert.Contains(t, err.Error(), "no id")
	assert.False(t, polled.Load())
}

func TestPoll_StopsOnCancel(t *testing.T) {
	f := &fakeService{statuses: []string{StatusProcessing}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	c := New(config.AssemblyAIConfig{BaseURL: srv.URL}, WithPolling(time.Hour, 10))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for f.polls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := c.Poll(ctx, "job-1", "aai-key")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), f.polls.Load())
}

func TestNew_Defaults(t *testing.T) {
	c := New(config.AssemblyAIConfig{})
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultPollInterval, c.pollInterval)
	assert.Equal(t, defaultMaxPolls, c.maxPolls)
}
