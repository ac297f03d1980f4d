package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/metrics"
	"github.com/nadzzz/readaloud/internal/normalizer"
	anthropicnorm "github.com/nadzzz/readaloud/internal/normalizer/anthropic"
	gatewaynorm "github.com/nadzzz/readaloud/internal/normalizer/gateway"
	localnorm "github.com/nadzzz/readaloud/internal/normalizer/local"
	"github.com/nadzzz/readaloud/internal/pipeline"
	"github.com/nadzzz/readaloud/internal/retry"
	"github.com/nadzzz/readaloud/internal/transcribe"
	"github.com/nadzzz/readaloud/internal/transcribe/assemblyai"
	"github.com/nadzzz/readaloud/internal/transcribe/whisper"
	"github.com/nadzzz/readaloud/internal/tts"
	"github.com/nadzzz/readaloud/internal/tts/httpapi"
	"github.com/nadzzz/readaloud/internal/tts/piper"
)

const llmTimeout = 2 * time.Minute

// newNormalizer builds the configured normalization backend wrapped in the
// rate-limit retry decorator.
func newNormalizer(cfg config.NormalizerConfig, m *metrics.Metrics) (normalizer.Normalizer, error) {
	prompt, err := normalizer.LoadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: llmTimeout}

	var n normalizer.Normalizer
	switch cfg.Backend {
	case "gateway":
		n = gatewaynorm.New(cfg.Gateway, prompt, gatewaynorm.WithHTTPClient(client))
		slog.Info("using AI gateway normalizer", "base_url", cfg.Gateway.BaseURL, "model", cfg.Gateway.Model)
	case "anthropic":
		n = anthropicnorm.New(cfg.Anthropic, prompt, client)
		slog.Info("using Anthropic normalizer", "model", cfg.Anthropic.Model)
	case "local":
		n = localnorm.New(cfg.Local, prompt, client)
		slog.Info("using local normalizer", "endpoint", cfg.Local.Endpoint, "model", cfg.Local.Model)
	default:
		return nil, fmt.Errorf("unknown normalizer backend %q", cfg.Backend)
	}

	slog.Debug("normalizer prompt", "name", prompt.Name, "version", prompt.Version)
	return normalizer.WithRetry(n, retry.Policy{
		Attempts: cfg.Retry.Attempts,
		Base:     cfg.Retry.BaseDelay,
		OnRetry:  m.OnRetry,
	}), nil
}

// newSynthesizer builds the configured TTS backend.
func newSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	switch cfg.Backend {
	case "httpapi":
		slog.Info("using HTTP TTS", "base_url", cfg.HTTPAPI.BaseURL, "encoding", cfg.HTTPAPI.Encoding)
		return httpapi.New(cfg.HTTPAPI), nil
	case "piper":
		slog.Info("using Piper TTS", "endpoint", cfg.Piper.Endpoint)
		return piper.New(cfg.Piper), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}

// newTranscriber builds the fallback transcriber. It returns nil when the
// fallback is disabled by backend "none".
func newTranscriber(cfg config.TranscriptionConfig) (transcribe.Transcriber, error) {
	switch cfg.Backend {
	case "assemblyai", "":
		slog.Info("using AssemblyAI transcription fallback", "base_url", cfg.AssemblyAI.BaseURL)
		return assemblyai.New(cfg.AssemblyAI), nil
	case "whisper":
		slog.Info("using Whisper transcription fallback", "model", cfg.Whisper.Model)
		return whisper.New(cfg.Whisper, &http.Client{Timeout: llmTimeout}), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}

// backends holds everything newPipeline created so it can be closed.
type backends struct {
	normalizer  normalizer.Normalizer
	synthesizer tts.Synthesizer
	transcriber transcribe.Transcriber
}

func (b *backends) Close() {
	if b.normalizer != nil {
		_ = b.normalizer.Close()
	}
	if b.synthesizer != nil {
		_ = b.synthesizer.Close()
	}
	if b.transcriber != nil {
		_ = b.transcriber.Close()
	}
}

// newPipeline wires the configured backends into a pipeline.
func newPipeline(cfg *config.Config, m *metrics.Metrics) (*pipeline.Pipeline, *backends, error) {
	b := &backends{}
	var err error

	if b.normalizer, err = newNormalizer(cfg.Normalizer, m); err != nil {
		return nil, nil, err
	}
	if b.synthesizer, err = newSynthesizer(cfg.TTS); err != nil {
		b.Close()
		return nil, nil, err
	}
	if b.transcriber, err = newTranscriber(cfg.Transcription); err != nil {
		b.Close()
		return nil, nil, err
	}

	p := pipeline.New(pipeline.Deps{
		Normalizer:  b.normalizer,
		Synthesizer: b.synthesizer,
		Transcriber: b.transcriber,
	}, pipeline.Options{
		ChunkSize:    cfg.Pipeline.ChunkSize,
		MaxChunks:    cfg.Pipeline.MaxChunks,
		DefaultVoice: cfg.TTS.Voice,
		Defaults:     cfg.Settings(),
	}, pipeline.WithMetrics(m))
	return p, b, nil
}
