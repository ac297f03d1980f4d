package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nadzzz/readaloud/internal/document"
	"github.com/nadzzz/readaloud/internal/speech"
	"github.com/nadzzz/readaloud/internal/transcribe"
	"github.com/nadzzz/readaloud/internal/transport"
)

// speakFile reads the document at path aloud and writes <name><ext> and
// <name>.words.json into outDir. It returns the two paths written.
func speakFile(ctx context.Context, speak transport.Handler, path, outDir string) (string, string, error) {
	text, err := document.Load(path)
	if err != nil {
		return "", "", err
	}

	outcome := speak(ctx, text, speech.Settings{})
	if err := outcome.Err(); err != nil {
		return "", "", err
	}
	ready := outcome.Ready

	audio, err := base64.StdEncoding.DecodeString(ready.Audio)
	if err != nil {
		return "", "", fmt.Errorf("decoding audio: %w", err)
	}
	words, err := json.MarshalIndent(ready.Words, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding word timings: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	audioPath := filepath.Join(outDir, name+transcribe.FileExtension(ready.ContentType))
	wordsPath := filepath.Join(outDir, name+".words.json")

	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return "", "", fmt.Errorf("writing audio: %w", err)
	}
	if err := os.WriteFile(wordsPath, words, 0o644); err != nil {
		return "", "", fmt.Errorf("writing word timings: %w", err)
	}

	slog.Info("document spoken",
		"run_id", ready.RunID,
		"audio", audioPath,
		"words", len(ready.Words),
		"fallback_timings", ready.UsedFallbackTimings)
	return audioPath, wordsPath, nil
}
