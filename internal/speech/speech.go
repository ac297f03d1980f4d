// Package speech defines the core data types flowing through the readaloud pipeline.
package speech

import (
	"encoding/base64"
	"strings"
)

// DefaultVoice is used when neither the caller nor the server config names a voice.
const DefaultVoice = "en-US-standard"

// WordTiming locates one spoken word within an audio timeline, in seconds.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Shift returns a copy of w moved forward by offset seconds.
func (w WordTiming) Shift(offset float64) WordTiming {
	return WordTiming{Word: w.Word, Start: w.Start + offset, End: w.End + offset}
}

// Result is a synthesized audio payload with its word timings.
type Result struct {
	// Audio is the concatenated audio as a base64-encoded string.
	Audio string `json:"audio"`

	// ContentType is the MIME type of Audio (e.g., "audio/mpeg", "audio/wav").
	ContentType string `json:"content_type"`

	// Words are the offset-corrected timings across the whole Audio.
	Words []WordTiming `json:"words"`

	// Duration is the audio length in seconds, 0 when the backend could not measure it.
	Duration float64 `json:"duration,omitempty"`
}

// NewResult base64-encodes raw audio bytes into a Result.
func NewResult(audio []byte, contentType string, words []WordTiming, duration float64) Result {
	w := make([]WordTiming, len(words))
	copy(w, words)
	return Result{
		Audio:       base64.StdEncoding.EncodeToString(audio),
		ContentType: contentType,
		Words:       w,
		Duration:    duration,
	}
}

// Settings is the per-invocation configuration supplied by the settings collaborator.
// It is read once per run and never mutated by the pipeline.
type Settings struct {
	TTSAPIKey                string `json:"tts_api_key,omitempty"`
	GatewayAPIKey            string `json:"gateway_api_key,omitempty"`
	TranscriptionAPIKey      string `json:"transcription_api_key,omitempty"`
	Voice                    string `json:"voice,omitempty"`

	// UseTranscriptionFallback is nil when the caller left it unset, so the
	// server default applies; an explicit false opts out.
	UseTranscriptionFallback *bool `json:"use_transcription_fallback,omitempty"`
}

// Merge fills empty fields of s from defaults. An explicitly set
// UseTranscriptionFallback is kept.
func (s Settings) Merge(defaults Settings) Settings {
	if s.TTSAPIKey == "" {
		s.TTSAPIKey = defaults.TTSAPIKey
	}
	if s.GatewayAPIKey == "" {
		s.GatewayAPIKey = defaults.GatewayAPIKey
	}
	if s.TranscriptionAPIKey == "" {
		s.TranscriptionAPIKey = defaults.TranscriptionAPIKey
	}
	if s.Voice == "" {
		s.Voice = defaults.Voice
	}
	if s.UseTranscriptionFallback == nil && defaults.UseTranscriptionFallback != nil {
		s.UseTranscriptionFallback = Bool(*defaults.UseTranscriptionFallback)
	}
	return s
}

// FallbackEnabled reports whether the transcription fallback was requested.
// Unset means disabled.
func (s Settings) FallbackEnabled() bool {
	return s.UseTranscriptionFallback != nil && *s.UseTranscriptionFallback
}

// Bool returns a pointer to b, for setting UseTranscriptionFallback.
func Bool(b bool) *bool {
	return &b
}

// Presence reports which credentials are set, without exposing their values.
func (s Settings) Presence() CredentialPresence {
	return CredentialPresence{
		TTS:           strings.TrimSpace(s.TTSAPIKey) != "",
		Gateway:       strings.TrimSpace(s.GatewayAPIKey) != "",
		Transcription: strings.TrimSpace(s.TranscriptionAPIKey) != "",
	}
}

// CredentialPresence is a snapshot of which credentials were configured for a run.
type CredentialPresence struct {
	TTS           bool `json:"tts"`
	Gateway       bool `json:"gateway"`
	Transcription bool `json:"transcription"`
}

// State is a step of the pipeline state sequence.
type State string

const (
	StateIdle                 State = "idle"
	StateNormalizing          State = "normalizing"
	StateSynthesizing         State = "synthesizing"
	StateTranscribingFallback State = "transcribing_fallback"
	StateReady                State = "ready"
	StateFailed               State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Ready is the payload handed to the presentation layer on success.
type Ready struct {
	RunID       string       `json:"run_id"`
	Text        string       `json:"text"`
	Audio       string       `json:"audio"`
	ContentType string       `json:"content_type"`
	Words       []WordTiming `json:"words"`

	// UsedFallbackTimings is true when Words came from the transcription service.
	UsedFallbackTimings bool               `json:"used_fallback_timings"`
	Credentials         CredentialPresence `json:"credentials"`
}

// Failed is the payload handed to the presentation layer when a run aborts.
type Failed struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// Outcome is the terminal result of a pipeline run. Exactly one of Ready or
// Failed is set, matching State.
type Outcome struct {
	State  State   `json:"state"`
	Ready  *Ready  `json:"ready,omitempty"`
	Failed *Failed `json:"failed,omitempty"`
}

// Err returns the failure as an error, or nil when the run succeeded.
func (o Outcome) Err() error {
	if o.Failed == nil {
		return nil
	}
	return &Error{Kind: o.Failed.Kind, Message: o.Failed.Message}
}

// Keyless is implemented by backends that run without an API key, such as
// self-hosted services.
type Keyless interface {
	Keyless() bool
}

// IsKeyless reports whether backend declares that it needs no API key.
func IsKeyless(backend any) bool {
	k, ok := backend.(Keyless)
	return ok && k.Keyless()
}
