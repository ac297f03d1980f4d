package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/readaloud/internal/speech"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readaloud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.HealthPort)
	assert.Equal(t, "gateway", cfg.Normalizer.Backend)
	assert.Equal(t, "https://ai-gateway.vercel.sh/v1", cfg.Normalizer.Gateway.BaseURL)
	assert.Equal(t, 3, cfg.Normalizer.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Normalizer.Retry.BaseDelay)
	assert.Equal(t, "httpapi", cfg.TTS.Backend)
	assert.Equal(t, "X-Word-Timings", cfg.TTS.HTTPAPI.TimingsHeader)
	assert.Equal(t, 2*time.Second, cfg.Transcription.AssemblyAI.PollInterval)
	assert.Equal(t, 60, cfg.Transcription.AssemblyAI.MaxPolls)
	assert.Equal(t, 1800, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 400, cfg.Pipeline.MaxChunks)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_FileAndEnvReferences(t *testing.T) {
	t.Setenv("MY_TTS_KEY", "secret-tts")
	path := writeConfig(t, `
tts:
  backend: piper
  api_key: ${MY_TTS_KEY}
  voice: amy
  piper:
    endpoint: piper:10200
    voices:
      amy: en_US-amy-medium
transcription:
  enabled: true
  api_key: literal-key
  assemblyai:
    poll_interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "piper", cfg.TTS.Backend)
	assert.Equal(t, "secret-tts", cfg.TTS.APIKey)
	assert.Equal(t, "en_US-amy-medium", cfg.TTS.Piper.Voices["amy"])
	assert.Equal(t, 250*time.Millisecond, cfg.Transcription.AssemblyAI.PollInterval)

	assert.Equal(t, speech.Settings{
		TTSAPIKey:                "secret-tts",
		TranscriptionAPIKey:      "literal-key",
		UseTranscriptionFallback: speech.Bool(true),
		Voice:                    "amy",
	}, cfg.Settings())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("READALOUD_NORMALIZER_BACKEND", "local")
	t.Setenv("READALOUD_NORMALIZER_API_KEY", "gw")
	t.Setenv("READALOUD_PIPELINE_MAX_CHUNKS", "12")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Normalizer.Backend)
	assert.Equal(t, "gw", cfg.Normalizer.APIKey)
	assert.Equal(t, 12, cfg.Pipeline.MaxChunks)
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("TTS_API_KEY", "tts-from-env")
	t.Setenv("ASSEMBLYAI_API_KEY", "")

	cfg, err := Load(filepath.Join("..", "..", "configs", "readaloud.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tts-from-env", cfg.TTS.APIKey)
	assert.Empty(t, cfg.Transcription.APIKey)
	assert.Equal(t, "assemblyai", cfg.Transcription.Backend)
	assert.Equal(t, "en_US-lessac-medium", cfg.TTS.Piper.Voices["en-us-standard"])
	assert.Equal(t, int64(20<<20), cfg.Transports.HTTP.MaxBody)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, "tts:\n  backend: espeak\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "espeak")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("RA_TEST_VALUE", "resolved")
	assert.Equal(t, "resolved", resolveEnvRef("${RA_TEST_VALUE}"))
	assert.Equal(t, "", resolveEnvRef("${RA_TEST_UNSET}"))
	assert.Equal(t, "plain", resolveEnvRef("plain"))
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, LoggingConfig{Level: "warn", Format: "json"}))

	log.Info("dropped")
	log.Warn("kept", "run_id", "r1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "r1", line["run_id"])

	buf.Reset()
	slog.New(NewHandler(&buf, LoggingConfig{Format: "text"})).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
