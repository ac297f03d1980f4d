// Package whisper implements the Transcriber using OpenAI's Audio
// Transcription API with word-level timestamp granularity.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transcribe"
)

const serviceName = "whisper"

// Transcriber calls the transcription endpoint synchronously.
type Transcriber struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates a whisper transcriber from config. An empty base URL selects
// the public OpenAI API.
func New(cfg config.WhisperConfig, client *http.Client) *Transcriber {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Transcriber{baseURL: cfg.BaseURL, model: model, client: client}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return serviceName }

// Words transcribes audio and returns word timings, already in seconds.
func (t *Transcriber) Words(ctx context.Context, audio []byte, opts transcribe.Opts) ([]speech.WordTiming, error) {
	cc := openai.DefaultConfig(opts.APIKey)
	if t.baseURL != "" {
		cc.BaseURL = strings.TrimRight(t.baseURL, "/")
	}
	cc.HTTPClient = t.client
	client := openai.NewClientWithConfig(cc)

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:                  t.model,
		FilePath:               "speech" + transcribe.FileExtension(opts.ContentType),
		Reader:                 bytes.NewReader(audio),
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularityWord},
	})
	if err != nil {
		return nil, speech.AsFallback(serviceName, mapError(err))
	}
	if len(resp.Words) == 0 {
		return nil, &speech.Error{Kind: speech.KindFallbackService, Service: serviceName, Message: "transcription returned no words"}
	}

	words := make([]speech.WordTiming, len(resp.Words))
	for i, w := range resp.Words {
		words[i] = speech.WordTiming{Word: strings.TrimSpace(w.Word), Start: w.Start, End: w.End}
	}
	slog.Debug("whisper transcription complete", "words", len(words), "duration", resp.Duration)
	return words, nil
}

// Close releases idle connections.
func (t *Transcriber) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return speech.RemoteError(serviceName, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return speech.RemoteError(serviceName, reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}
	return err
}
