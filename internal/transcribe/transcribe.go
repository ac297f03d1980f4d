// Package transcribe defines the interface for recovering word timings from
// synthesized audio.
//
// Transcription is a fallback: when enabled, the combined audio is sent to a
// speech-to-text service and its word timings replace the ones the TTS
// service reported. Every failure a Transcriber returns is tagged
// fallback_service or fallback_timeout so the pipeline can recover from it.
package transcribe

import (
	"context"
	"strings"

	"github.com/nadzzz/readaloud/internal/speech"
)

// Opts controls a transcription request.
type Opts struct {
	// APIKey authenticates the request.
	APIKey string

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg").
	ContentType string
}

// Transcriber returns word timings for an audio payload.
type Transcriber interface {
	// Name returns the backend identifier (e.g., "assemblyai", "whisper").
	Name() string

	// Words transcribes audio and returns its word timings in seconds.
	Words(ctx context.Context, audio []byte, opts Opts) ([]speech.WordTiming, error)

	// Close releases any resources held by the transcriber.
	Close() error
}

// FileExtension maps an audio MIME type to a file extension for multipart uploads.
func FileExtension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	default:
		return ".mp3"
	}
}
