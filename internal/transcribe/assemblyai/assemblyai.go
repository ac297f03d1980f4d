// Package assemblyai implements the Transcriber with an asynchronous
// upload / create job / poll transcription API.
//
// The flow is three calls: the audio is uploaded and the service answers with
// a private upload URL; a transcription job is created for that URL; the job
// is polled until it completes or fails. Word timings arrive in milliseconds
// and are converted to seconds.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transcribe"
)

const (
	serviceName = "assemblyai"

	defaultBaseURL      = "https://api.assemblyai.com"
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 60
)

// Job statuses reported by the transcript endpoint.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Client talks to the transcription service.
type Client struct {
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	client       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the configured base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithPolling overrides the poll interval and the maximum number of polls.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxPolls = maxPolls
	}
}

// New creates a transcription client from config.
func New(cfg config.AssemblyAIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		client:       &http.Client{Timeout: 2 * time.Minute},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.maxPolls <= 0 {
		c.maxPolls = defaultMaxPolls
	}
	return c
}

// Name returns the backend identifier.
func (c *Client) Name() string { return serviceName }

// Words uploads audio, creates a job, and polls it to completion.
func (c *Client) Words(ctx context.Context, audio []byte, opts transcribe.Opts) ([]speech.WordTiming, error) {
	uploadURL, err := c.Upload(ctx, audio, opts.APIKey)
	if err != nil {
		return nil, speech.AsFallback(serviceName, err)
	}
	id, err := c.CreateJob(ctx, uploadURL, opts.APIKey)
	if err != nil {
		return nil, speech.AsFallback(serviceName, err)
	}
	words, err := c.Poll(ctx, id, opts.APIKey)
	if err != nil {
		return nil, speech.AsFallback(serviceName, err)
	}
	return words, nil
}

// Upload sends the raw audio and returns the service-side upload URL.
func (c *Client) Upload(ctx context.Context, audio []byte, apiKey string) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(audio), apiKey, &out); err != nil {
		return "", fmt.Errorf("uploading audio: %w", err)
	}
	if out.UploadURL == "" {
		return "", fallbackError("upload response has no upload_url", nil)
	}
	slog.Debug("transcription audio uploaded", "bytes", len(audio))
	return out.UploadURL, nil
}

// CreateJob starts a transcription job for uploadURL and returns its id.
func (c *Client) CreateJob(ctx context.Context, uploadURL, apiKey string) (string, error) {
	body, err := json.Marshal(map[string]string{"audio_url": uploadURL})
	if err != nil {
		return "", fmt.Errorf("marshalling job request: %w", err)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), apiKey, &out); err != nil {
		return "", fmt.Errorf("creating transcription job: %w", err)
	}
	if out.ID == "" {
		return "", fallbackError("job response has no id", nil)
	}
	slog.Debug("transcription job created", "job_id", out.ID)
	return out.ID, nil
}

// transcript is the job status payload.
type transcript struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Words  []struct {
		Text  string `json:"text"`
		Start int64  `json:"start"` // milliseconds
		End   int64  `json:"end"`   // milliseconds
	} `json:"words"`
}

// Poll checks the job every poll interval until it completes, fails, or the
// poll budget runs out.
func (c *Client) Poll(ctx context.Context, id, apiKey string) ([]speech.WordTiming, error) {
	path := "/v2/transcript/" + url.PathEscape(id)

	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		var t transcript
		if err := c.do(ctx, http.MethodGet, path, "", nil, apiKey, &t); err != nil {
			return nil, fmt.Errorf("polling job %s: %w", id, err)
		}

		switch t.Status {
		case StatusCompleted:
			words := make([]speech.WordTiming, len(t.Words))
			for i, w := range t.Words {
				words[i] = speech.WordTiming{
					Word:  w.Text,
					Start: float64(w.Start) / 1000,
					End:   float64(w.End) / 1000,
				}
			}
			slog.Debug("transcription job completed", "job_id", id, "polls", attempt, "words", len(words))
			return words, nil

		case StatusError:
			msg := t.Error
			if msg == "" {
				msg = "job failed"
			}
			return nil, fallbackError(msg, nil)
		}

		if attempt == c.maxPolls {
			break
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, &speech.Error{
		Kind:    speech.KindFallbackTimeout,
		Service: serviceName,
		Message: fmt.Sprintf("job %s not complete after %d polls", id, c.maxPolls),
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, apiKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fallbackError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &speech.Error{
			Kind:       speech.KindFallbackService,
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fallbackError("decoding response", err)
	}
	return nil
}

func fallbackError(msg string, cause error) *speech.Error {
	return &speech.Error{Kind: speech.KindFallbackService, Service: serviceName, Message: msg, Cause: cause}
}
