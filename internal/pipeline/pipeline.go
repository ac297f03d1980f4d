// Package pipeline implements the readaloud orchestration engine.
//
// A run takes one document and per-run settings through normalization,
// chunking, synthesis and the optional transcription fallback, and always
// ends in exactly one speech.Outcome: Ready with the combined audio and word
// timings, or Failed with a single message. Fallback failures are recovered
// here and never fail a run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/readaloud/internal/chunk"
	"github.com/nadzzz/readaloud/internal/metrics"
	"github.com/nadzzz/readaloud/internal/normalizer"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transcribe"
	"github.com/nadzzz/readaloud/internal/tts"
)

// DefaultMaxChunks caps the number of chunks one run may synthesize.
const DefaultMaxChunks = 400

// Deps are the remote-service clients a pipeline drives.
type Deps struct {
	Normalizer  normalizer.Normalizer
	Synthesizer tts.Synthesizer

	// Transcriber is optional; nil disables the fallback.
	Transcriber transcribe.Transcriber
}

// Options bound and default a run.
type Options struct {
	// ChunkSize is the maximum chunk length in characters (default chunk.DefaultMaxLen).
	ChunkSize int

	// MaxChunks rejects documents that split into more chunks (default DefaultMaxChunks).
	MaxChunks int

	// DefaultVoice is used when neither the caller nor Defaults name a voice.
	DefaultVoice string

	// Defaults fill settings the caller left empty.
	Defaults speech.Settings
}

// Pipeline is stateless between runs and safe for concurrent use.
type Pipeline struct {
	deps    Deps
	opts    Options
	metrics *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline.
func New(deps Deps, opts Options, options ...Option) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultMaxLen
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	if opts.DefaultVoice == "" {
		opts.DefaultVoice = speech.DefaultVoice
	}
	p := &Pipeline{deps: deps, opts: opts}
	for _, o := range options {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New(nil)
	}
	return p
}

// Speak runs document on a fresh session. It is the handler the transports use.
func (p *Pipeline) Speak(ctx context.Context, document string, settings speech.Settings) speech.Outcome {
	return p.Run(ctx, NewSession(nil), document, settings)
}

// Run processes document end to end on sess, cancelling any run already in
// flight on it. A nil sess gets a private session.
func (p *Pipeline) Run(ctx context.Context, sess *Session, document string, settings speech.Settings) speech.Outcome {
	if sess == nil {
		sess = NewSession(nil)
	}
	ctx, cancel, runID := sess.begin(ctx)
	defer cancel()
	defer sess.finish(runID)

	start := time.Now()
	logger := slog.With("run_id", runID)

	settings = settings.Merge(p.opts.Defaults)
	if settings.Voice == "" {
		settings.Voice = p.opts.DefaultVoice
	}
	creds := settings.Presence()
	logger.Info("run started",
		"document_length", len(document),
		"voice", settings.Voice,
		"fallback", settings.FallbackEnabled())

	ready, err := p.run(ctx, sess, runID, logger, document, settings)
	if err != nil {
		kind := speech.KindOf(err)
		if ctx.Err() != nil {
			kind = speech.KindCancelled
		}
		sess.transition(runID, speech.StateFailed)
		p.metrics.Runs.WithLabelValues(string(speech.StateFailed)).Inc()
		logger.Error("run failed", "kind", kind, "error", err, "duration", time.Since(start))
		return speech.Outcome{
			State:  speech.StateFailed,
			Failed: &speech.Failed{RunID: runID, Message: err.Error(), Kind: kind},
		}
	}

	ready.RunID = runID
	ready.Credentials = creds
	sess.transition(runID, speech.StateReady)
	p.metrics.Runs.WithLabelValues(string(speech.StateReady)).Inc()
	logger.Info("run complete",
		"duration", time.Since(start),
		"words", len(ready.Words),
		"used_fallback_timings", ready.UsedFallbackTimings)
	return speech.Outcome{State: speech.StateReady, Ready: ready}
}

func (p *Pipeline) run(ctx context.Context, sess *Session, runID string, logger *slog.Logger, document string, settings speech.Settings) (*speech.Ready, error) {
	// Step 1: Validate before any network call.
	if err := p.validate(settings); err != nil {
		return nil, err
	}
	if strings.TrimSpace(document) == "" {
		return nil, &speech.Error{Kind: speech.KindEmptyResult, Message: "document is empty"}
	}

	// Step 2: Normalize.
	sess.transition(runID, speech.StateNormalizing)
	stageStart := time.Now()
	text, err := p.deps.Normalizer.Normalize(ctx, document, normalizer.Opts{APIKey: settings.GatewayAPIKey})
	p.metrics.ObserveStage(metrics.StageNormalize, stageStart)
	if err != nil {
		return nil, fmt.Errorf("normalizing document: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &speech.Error{Kind: speech.KindEmptyResult, Service: p.deps.Normalizer.Name(), Message: "normalization produced no text"}
	}
	logger.Info("normalization complete", "text_length", len(text))

	// Step 3: Chunk.
	chunks := chunk.Split(text, p.opts.ChunkSize)
	if len(chunks) > p.opts.MaxChunks {
		return nil, &speech.Error{
			Kind:    speech.KindInputTooLarge,
			Message: fmt.Sprintf("document needs %d chunks, limit is %d", len(chunks), p.opts.MaxChunks),
		}
	}
	p.metrics.Chunks.Add(float64(len(chunks)))

	// Step 4: Synthesize. Any chunk failure is fatal.
	sess.transition(runID, speech.StateSynthesizing)
	stageStart = time.Now()
	combined, err := tts.SynthesizeAll(ctx, p.deps.Synthesizer, chunks, tts.SynthesizeOpts{
		Voice:  settings.Voice,
		APIKey: settings.TTSAPIKey,
	})
	p.metrics.ObserveStage(metrics.StageSynthesize, stageStart)
	if err != nil {
		return nil, err
	}
	logger.Info("synthesis complete",
		"chunks", len(chunks),
		"audio_bytes", len(combined.Audio),
		"words", len(combined.Words))

	result := combined.Result()
	ready := &speech.Ready{
		Text:        text,
		Audio:       result.Audio,
		ContentType: result.ContentType,
		Words:       result.Words,
	}

	// Step 5: Optional transcription fallback. Failures keep the synthesis timings.
	if p.fallbackEnabled(settings, logger) {
		sess.transition(runID, speech.StateTranscribingFallback)
		stageStart = time.Now()
		words, err := p.deps.Transcriber.Words(ctx, combined.Audio, transcribe.Opts{
			APIKey:      settings.TranscriptionAPIKey,
			ContentType: combined.ContentType,
		})
		p.metrics.ObserveStage(metrics.StageTranscribe, stageStart)

		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			p.metrics.FallbackFailures.WithLabelValues(string(speech.KindOf(err))).Inc()
			logger.Warn("transcription fallback failed, keeping synthesis timings", "error", err)
		case len(words) == 0:
			p.metrics.FallbackFailures.WithLabelValues(string(speech.KindFallbackService)).Inc()
			logger.Warn("transcription fallback returned no words, keeping synthesis timings")
		default:
			ready.Words = words
			ready.UsedFallbackTimings = true
			logger.Info("transcription fallback complete", "words", len(words))
		}
	}

	return ready, nil
}

// validate checks credentials. Keyless backends need none.
func (p *Pipeline) validate(settings speech.Settings) error {
	creds := settings.Presence()
	if !creds.TTS && !speech.IsKeyless(p.deps.Synthesizer) {
		return speech.ConfigurationError("TTS API key is not configured")
	}
	if !creds.Gateway && !speech.IsKeyless(p.deps.Normalizer) {
		return speech.ConfigurationError("AI gateway API key is not configured")
	}
	return nil
}

func (p *Pipeline) fallbackEnabled(settings speech.Settings, logger *slog.Logger) bool {
	if !settings.FallbackEnabled() {
		return false
	}
	if p.deps.Transcriber == nil {
		logger.Debug("transcription fallback requested but no transcriber is configured")
		return false
	}
	if !settings.Presence().Transcription {
		logger.Warn("transcription fallback requested without a transcription API key, skipping")
		return false
	}
	return true
}
