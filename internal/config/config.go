package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ent0n29/gbird/internal/reply"
)

// Config contains all runtime settings for the field-ops console service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	STTProvider        string
	CompletionProvider string
	TTSProvider        string

	GroqAPIKey    string
	GroqBaseURL   string
	GroqSTTModel  string
	GroqChatModel string

	AnthropicAPIKey string
	AnthropicModel  string

	ElevenLabsAPIKey   string
	ElevenLabsBaseURL  string
	ElevenLabsTTSVoice string
	ElevenLabsTTSModel string

	GoogleSTTLanguage string
	// GoogleCredentials is the service account file picked up by the Google
	// client libraries. Auto mode only tries Google STT when it is set.
	GoogleCredentials string

	SnapshotBackend string
	SnapshotPath    string
	SnapshotKey     string
	RedisURL        string
	DatabaseURL     string

	// ServiceHTTPTimeout bounds upstream HTTP calls. Zero means no timeout.
	ServiceHTTPTimeout time.Duration

	OpsMode  string
	OpsRoute string
	SimSeed  uint64
}

var (
	OpsModes  = reply.OpsModes
	OpsRoutes = reply.OpsRoutes
)

// LoadDotEnv populates the environment from .env-style files. Missing files
// are ignored and variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "gbird"),
		AllowAnyOrigin:     false,
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		STTProvider:        strings.ToLower(envOrDefault("STT_PROVIDER", "auto")),
		CompletionProvider: strings.ToLower(envOrDefault("COMPLETION_PROVIDER", "auto")),
		TTSProvider:        strings.ToLower(envOrDefault("TTS_PROVIDER", "auto")),
		GroqAPIKey:         stringsTrimSpace("GROQ_API_KEY"),
		GroqBaseURL:        envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqSTTModel:       envOrDefault("GROQ_STT_MODEL", "whisper-large-v3-turbo"),
		GroqChatModel:      envOrDefault("GROQ_CHAT_MODEL", "llama-3.1-8b-instant"),
		AnthropicAPIKey:    stringsTrimSpace("ANTHROPIC_API_KEY"),
		AnthropicModel:     envOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		ElevenLabsAPIKey:   stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:  envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsTTSVoice: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		GoogleSTTLanguage:  envOrDefault("GOOGLE_STT_LANGUAGE", "en-US"),
		GoogleCredentials:  stringsTrimSpace("GOOGLE_APPLICATION_CREDENTIALS"),
		SnapshotBackend:    strings.ToLower(envOrDefault("SNAPSHOT_BACKEND", "file")),
		SnapshotPath:       envOrDefault("SNAPSHOT_PATH", "data/gbird-memory.json"),
		SnapshotKey:        envOrDefault("SNAPSHOT_KEY", "gbird-memory"),
		RedisURL:           stringsTrimSpace("REDIS_URL"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		OpsMode:            envOrDefault("OPS_MODE", "Autopilot"),
		OpsRoute:           envOrDefault("OPS_ROUTE", "Orbit"),
		ShutdownTimeout:    15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ServiceHTTPTimeout, err = durationFromEnv("SERVICE_HTTP_TIMEOUT", cfg.ServiceHTTPTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	seed, err := intFromEnv("SIM_SEED", 0)
	if err != nil {
		return Config{}, err
	}
	if seed < 0 {
		return Config{}, fmt.Errorf("SIM_SEED must be >= 0")
	}
	cfg.SimSeed = uint64(seed)

	if cfg.ServiceHTTPTimeout < 0 {
		return Config{}, fmt.Errorf("SERVICE_HTTP_TIMEOUT must be >= 0")
	}
	if err := oneOf("STT_PROVIDER", cfg.STTProvider, "auto", "groq", "google", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("COMPLETION_PROVIDER", cfg.CompletionProvider, "auto", "groq", "anthropic", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("TTS_PROVIDER", cfg.TTSProvider, "auto", "elevenlabs", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("SNAPSHOT_BACKEND", cfg.SnapshotBackend, "file", "redis", "postgres", "memory"); err != nil {
		return Config{}, err
	}
	if cfg.SnapshotBackend == "redis" && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required for the redis snapshot backend")
	}
	if cfg.SnapshotBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres snapshot backend")
	}
	if err := oneOf("OPS_MODE", cfg.OpsMode, OpsModes...); err != nil {
		return Config{}, err
	}
	if err := oneOf("OPS_ROUTE", cfg.OpsRoute, OpsRoutes...); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), v)
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
