// Package tts defines the interface for text-to-speech synthesis and the
// coordinator that stitches per-chunk results into one timeline.
//
// Long documents are synthesized chunk by chunk. Each chunk's audio starts at
// time zero, so the coordinator re-offsets every chunk's word timings onto a
// single continuous timeline while joining the audio buffers in order.
package tts

import (
	"context"

	"github.com/nadzzz/readaloud/internal/speech"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Voice selects the speaker voice.
	Voice string

	// APIKey authenticates the request. Keyless backends ignore it.
	APIKey string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "httpapi", "piper").
	Name() string

	// Synthesize generates audio for one chunk of text. Word timings, when the
	// backend reports them, are relative to the start of this chunk's audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis for one chunk.
type SynthesizeResult struct {
	// Audio is the encoded audio for this chunk.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg", "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz, 0 if unknown.
	SampleRate int

	// Channels is the number of audio channels, 0 if unknown.
	Channels int

	// Words are the chunk-relative word timings. Empty when the backend sent none.
	Words []speech.WordTiming

	// Duration is the measured audio length in seconds, 0 when unknown.
	Duration float64
}
