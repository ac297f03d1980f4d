// Package httpapi implements the TTS Synthesizer against a hosted speech API.
//
// The service takes the chunk text as a text/plain body and answers with the
// encoded audio. Word timings, when the service computes them, arrive in a
// response header as a JSON array of {word, start, end} objects in seconds.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/readaloud/internal/audio"
	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/tts"
)

const (
	serviceName = "tts"

	defaultEncoding      = "mp3"
	defaultTimingsHeader = "X-Word-Timings"
	defaultTimeout       = 60 * time.Second

	// maxErrorBody caps how much of an error response is kept in the error message.
	maxErrorBody = 2048
)

// Synthesizer calls the hosted TTS API.
type Synthesizer struct {
	baseURL       string
	encoding      string
	timingsHeader string
	client        *http.Client
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithBaseURL overrides the configured base URL.
func WithBaseURL(u string) Option {
	return func(s *Synthesizer) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) {
		s.client = c
	}
}

// New creates a hosted TTS synthesizer from config.
func New(cfg config.HTTPAPIConfig, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		encoding:      cfg.Encoding,
		timingsHeader: cfg.TimingsHeader,
	}
	if s.encoding == "" {
		s.encoding = defaultEncoding
	}
	if s.timingsHeader == "" {
		s.timingsHeader = defaultTimingsHeader
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s.client = &http.Client{Timeout: timeout}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "httpapi" }

// Synthesize posts one chunk of text and returns its audio and timings.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &speech.Error{Kind: speech.KindEmptyResult, Service: serviceName, Message: "empty text for synthesis"}
	}
	voice := opts.Voice
	if voice == "" {
		voice = speech.DefaultVoice
	}

	q := url.Values{}
	q.Set("encoding", s.encoding)
	endpoint := fmt.Sprintf("%s/v1/speech/%s?%s", s.baseURL, url.PathEscape(voice), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(text))
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindConfiguration, Service: serviceName, Message: "invalid tts base url", Cause: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+opts.APIKey)

	slog.Debug("tts request", "voice", voice, "encoding", s.encoding, "text_length", len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, speech.TransportError(ctx, serviceName, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, speech.RemoteError(serviceName, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, speech.TransportError(ctx, serviceName, "reading audio", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = contentTypeFor(s.encoding)
	}

	return &tts.SynthesizeResult{
		Audio:       data,
		ContentType: contentType,
		Words:       parseTimings(resp.Header.Get(s.timingsHeader)),
		Duration:    audio.Duration(contentType, data),
	}, nil
}

// Close releases idle connections.
func (s *Synthesizer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// parseTimings decodes the timing header. An absent or malformed header
// yields no words.
func parseTimings(raw string) []speech.WordTiming {
	if raw == "" {
		slog.Debug("tts response carried no word timings")
		return nil
	}
	var words []speech.WordTiming
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		slog.Debug("ignoring malformed word timings", "error", err)
		return nil
	}
	return words
}

func contentTypeFor(encoding string) string {
	switch strings.ToLower(encoding) {
	case "wav", "linear16", "pcm":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
