// Package config handles loading and validating the readaloud configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nadzzz/readaloud/internal/speech"
)

// Config is the root configuration for the readaloud daemon.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Normalizer    NormalizerConfig    `mapstructure:"normalizer"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each inbound transport.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool  `mapstructure:"enabled"`
	Port    int   `mapstructure:"port"`
	MaxBody int64 `mapstructure:"max_body"` // request body limit in bytes
}

// NormalizerConfig selects and configures the text normalization backend.
type NormalizerConfig struct {
	Backend    string          `mapstructure:"backend"` // "gateway", "anthropic" or "local"
	APIKey     string          `mapstructure:"api_key"`
	PromptFile string          `mapstructure:"prompt_file"` // overrides the embedded prompt
	Retry      RetryConfig     `mapstructure:"retry"`
	Gateway    GatewayConfig   `mapstructure:"gateway"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic"`
	Local      LocalConfig     `mapstructure:"local"`
}

// RetryConfig tunes the rate-limit backoff.
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// GatewayConfig holds OpenAI-compatible AI gateway settings.
type GatewayConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// AnthropicConfig holds Anthropic Messages API settings.
type AnthropicConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// LocalConfig holds self-hosted LLM settings.
type LocalConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Ollama /api/generate or an OpenAI-compatible chat endpoint
	Model    string `mapstructure:"model"`    // model name (e.g., "llama3.2:1b")
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend string        `mapstructure:"backend"` // "httpapi" or "piper"
	APIKey  string        `mapstructure:"api_key"`
	Voice   string        `mapstructure:"voice"`
	HTTPAPI HTTPAPIConfig `mapstructure:"httpapi"`
	Piper   PiperConfig   `mapstructure:"piper"`
}

// HTTPAPIConfig holds settings for the hosted TTS API.
type HTTPAPIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Encoding      string        `mapstructure:"encoding"`       // e.g. "mp3"
	TimingsHeader string        `mapstructure:"timings_header"` // response header carrying word timings
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// Voices maps logical voice names (as supplied in settings) to Piper voice
// models. Unmapped names are passed to Piper unchanged.
type PiperConfig struct {
	Endpoint string            `mapstructure:"endpoint"` // Wyoming TCP endpoint (host:port)
	Voices   map[string]string `mapstructure:"voices"`
}

// TranscriptionConfig configures the word-timing fallback service.
type TranscriptionConfig struct {
	Enabled    bool             `mapstructure:"enabled"` // default for UseTranscriptionFallback
	Backend    string           `mapstructure:"backend"` // "assemblyai" or "whisper"
	APIKey     string           `mapstructure:"api_key"`
	AssemblyAI AssemblyAIConfig `mapstructure:"assemblyai"`
	Whisper    WhisperConfig    `mapstructure:"whisper"`
}

// AssemblyAIConfig holds upload/job/poll transcription settings.
type AssemblyAIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
}

// WhisperConfig holds OpenAI transcription settings.
type WhisperConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// PipelineConfig bounds a single run.
type PipelineConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
	MaxChunks int `mapstructure:"max_chunks"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Settings returns the server-side default per-run settings. Callers merge
// their own values over these with speech.Settings.Merge.
func (c *Config) Settings() speech.Settings {
	return speech.Settings{
		TTSAPIKey:                c.TTS.APIKey,
		GatewayAPIKey:            c.Normalizer.APIKey,
		TranscriptionAPIKey:      c.Transcription.APIKey,
		UseTranscriptionFallback: speech.Bool(c.Transcription.Enabled),
		Voice:                    c.TTS.Voice,
	}
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./readaloud.yaml, ./configs/readaloud.yaml, /etc/readaloud/readaloud.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.max_body", 20<<20)
	v.SetDefault("normalizer.backend", "gateway")
	v.SetDefault("normalizer.api_key", "")
	v.SetDefault("normalizer.prompt_file", "")
	v.SetDefault("normalizer.retry.attempts", 3)
	v.SetDefault("normalizer.retry.base_delay", "1s")
	v.SetDefault("normalizer.gateway.base_url", "https://ai-gateway.vercel.sh/v1")
	v.SetDefault("normalizer.gateway.model", "openai/gpt-4o-mini")
	v.SetDefault("normalizer.anthropic.base_url", "")
	v.SetDefault("normalizer.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("normalizer.anthropic.max_tokens", 8192)
	v.SetDefault("normalizer.local.endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("normalizer.local.model", "llama3")
	v.SetDefault("tts.backend", "httpapi")
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.voice", speech.DefaultVoice)
	v.SetDefault("tts.httpapi.base_url", "https://api.tts.example.com")
	v.SetDefault("tts.httpapi.encoding", "mp3")
	v.SetDefault("tts.httpapi.timings_header", "X-Word-Timings")
	v.SetDefault("tts.httpapi.timeout", "60s")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("transcription.enabled", false)
	v.SetDefault("transcription.backend", "assemblyai")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.assemblyai.base_url", "https://api.assemblyai.com")
	v.SetDefault("transcription.assemblyai.poll_interval", "2s")
	v.SetDefault("transcription.assemblyai.max_polls", 60)
	v.SetDefault("transcription.whisper.base_url", "")
	v.SetDefault("transcription.whisper.model", "whisper-1")
	v.SetDefault("pipeline.chunk_size", 1800)
	v.SetDefault("pipeline.max_chunks", 400)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("readaloud")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/readaloud")
	}

	// Environment variables: READALOUD_TTS_API_KEY, READALOUD_NORMALIZER_BACKEND, etc.
	v.SetEnvPrefix("READALOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional: env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in credentials (e.g., "${TTS_API_KEY}")
	cfg.Normalizer.APIKey = resolveEnvRef(cfg.Normalizer.APIKey)
	cfg.TTS.APIKey = resolveEnvRef(cfg.TTS.APIKey)
	cfg.Transcription.APIKey = resolveEnvRef(cfg.Transcription.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects backend names and limits the daemon cannot run with.
// Missing credentials are not an error here; they are checked per run.
func (c *Config) Validate() error {
	switch c.Normalizer.Backend {
	case "gateway", "anthropic", "local":
	default:
		return fmt.Errorf("unknown normalizer backend %q", c.Normalizer.Backend)
	}
	switch c.TTS.Backend {
	case "httpapi", "piper":
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	switch c.Transcription.Backend {
	case "assemblyai", "whisper", "none", "":
	default:
		return fmt.Errorf("unknown transcription backend %q", c.Transcription.Backend)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.MaxChunks <= 0 {
		return fmt.Errorf("pipeline.max_chunks must be positive, got %d", c.Pipeline.MaxChunks)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var
// value. An unset variable resolves to "" so the credential reads as missing.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, cfg)))
}

// NewHandler builds the slog handler described by cfg.
func NewHandler(w io.Writer, cfg LoggingConfig) slog.Handler {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
