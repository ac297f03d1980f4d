package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/readaloud/internal/audio"
	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/tts"
)

func newTestSynth(t *testing.T, h http.HandlerFunc) *Synthesizer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.HTTPAPIConfig{}, WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
}

func TestSynthesize_Success(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/speech/nova", r.URL.Path)
		assert.Equal(t, "mp3", r.URL.Query().Get("encoding"))
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "text/plain")
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Hello there.", string(body))

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("X-Word-Timings", `[{"word":"Hello","start":0,"end":0.4},{"word":"there","start":0.45,"end":0.9}]`)
		_, _ = w.Write([]byte("ID3-audio"))
	})

	res, err := s.Synthesize(context.Background(), "Hello there.", tts.SynthesizeOpts{Voice: "nova", APIKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(res.Audio))
	assert.Equal(t, "audio/mpeg", res.ContentType)
	assert.Equal(t, []speech.WordTiming{
		{Word: "Hello", Start: 0, End: 0.4},
		{Word: "there", Start: 0.45, End: 0.9},
	}, res.Words)
}

func TestSynthesize_DefaultVoiceAndContentType(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech/"+speech.DefaultVoice, r.URL.Path)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("x"))
	})

	res, err := s.Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", res.ContentType)
	assert.Empty(t, res.Words)
}

func TestSynthesize_MalformedTimingsYieldNoWords(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Word-Timings", "not json")
		_, _ = w.Write([]byte("audio"))
	})

	res, err := s.Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
	require.NoError(t, err)
	assert.Empty(t, res.Words)
	assert.Equal(t, "audio", string(res.Audio))
}

func TestSynthesize_CustomTimingsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Alignment", `[{"word":"Hi","start":0.1,"end":0.3}]`)
		_, _ = w.Write([]byte("a"))
	}))
	defer srv.Close()

	s := New(config.HTTPAPIConfig{BaseURL: srv.URL, TimingsHeader: "X-Alignment", Encoding: "wav"})
	res, err := s.Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
	require.NoError(t, err)
	require.Len(t, res.Words, 1)
	assert.Equal(t, "Hi", res.Words[0].Word)
}

func TestSynthesize_MeasuresWAVDuration(t *testing.T) {
	// 16 kHz mono 16-bit: 32000 bytes per second.
	wav := audio.PCMToWAV(make([]byte, 16000), 16000, 1, 2)
	s := newTestSynth(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	})

	res, err := s.Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Duration, 1e-9)
}

func TestSynthesize_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   speech.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, speech.KindRateLimited},
		{"unauthorized", http.StatusUnauthorized, speech.KindRemoteService},
		{"server error", http.StatusInternalServerError, speech.KindRemoteService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSynth(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := s.Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
			require.Error(t, err)
			assert.Equal(t, tt.want, speech.KindOf(err))

			var se *speech.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	s := New(config.HTTPAPIConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := s.Synthesize(context.Background(), "  ", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, speech.ErrEmptyResult)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "audio/wav", contentTypeFor("wav"))
	assert.Equal(t, "audio/ogg", contentTypeFor("opus"))
	assert.Equal(t, "audio/mpeg", contentTypeFor("mp3"))
}

func TestSynthesize_TransportFailuresAreRemoteService(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		baseURL := srv.URL
		srv.Close()

		_, err := New(config.HTTPAPIConfig{BaseURL: baseURL}).Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
		require.Error(t, err)
		assert.Equal(t, speech.KindRemoteService, speech.KindOf(err))
		assert.ErrorIs(t, err, &speech.Error{Kind: speech.KindRemoteService, Service: "tts"})
	})

	t.Run("client timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer srv.Close()
		defer close(release)

		s := New(config.HTTPAPIConfig{}, WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
		_, err := s.Synthesize(context.Background(), "Hi.", tts.SynthesizeOpts{APIKey: "k"})
		require.Error(t, err)
		assert.Equal(t, speech.KindRemoteService, speech.KindOf(err))
	})

	t.Run("cancelled run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := newTestSynth(t, func(_ http.ResponseWriter, r *http.Request) {
			cancel()
			<-r.Context().Done()
		})

		_, err := s.Synthesize(ctx, "Hi.", tts.SynthesizeOpts{APIKey: "k"})
		require.Error(t, err)
		assert.Equal(t, speech.KindCancelled, speech.KindOf(err))
	})
}
