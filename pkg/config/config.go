// Package config loads the environment-driven configuration for a single
// pipeline run, plus a hot-reloadable SystemConfig of
// technical parameters (channel buffers, retry counts, timeouts).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the environment knobs for one pipeline run: feed and
// archival settings plus provider-selection and external-service wiring.
type Config struct {
	// WSSock is the upstream feed URL (required).
	WSSock string
	// ResultsDir is where completed conversations are archived.
	ResultsDir string
	// SuspendAfter is the inactivity threshold before a conversation is
	// marked suspended.
	SuspendAfter time.Duration
	// ArchiveEvery is the event count between lifecycle passes.
	ArchiveEvery int
	// CompletionGrace is the grace period after suspension before a
	// conversation completes absent an extracted event datetime.
	CompletionGrace time.Duration
	// ConfidenceThreshold optionally gates messages before the
		// Disentangler on classifier score; 0 disables the gate.
	ConfidenceThreshold float64

	ClassifierURL string
	EmbeddingURL  string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string

	NotifyTelegramToken  string
	NotifyTelegramChatID int64
}

// Load reads configuration from environment variables, loading a local
// .env file first if present (github.com/joho/godotenv), matching the
// pattern used across the reference corpus for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		WSSock:              os.Getenv("WS_SOCK"),
		ResultsDir:          getEnv("RESULTS_DIR", "results/"),
		SuspendAfter:        secondsEnv("SUSPEND_AFTER_SECS", 30),
		ArchiveEvery:        intEnv("ARCHIVE_EVERY", 10),
		CompletionGrace:     secondsEnv("COMPLETION_GRACE_SECS", 60),
		ConfidenceThreshold: floatEnv("CONFIDENCE_THRESHOLD", 0),

		ClassifierURL: os.Getenv("CLASSIFIER_URL"),
		EmbeddingURL:  os.Getenv("EMBEDDING_URL"),

		LLMProvider: getEnv("LLM_PROVIDER", "gemini"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),

		NotifyTelegramToken: os.Getenv("NOTIFY_TELEGRAM_TOKEN"),
	}

	if cfg.WSSock == "" {
		return nil, fmt.Errorf("config: WS_SOCK is required")
	}

	if raw := os.Getenv("NOTIFY_TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid NOTIFY_TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.NotifyTelegramChatID = id
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func secondsEnv(key string, fallbackSecs int) time.Duration {
	return time.Duration(intEnv(key, fallbackSecs)) * time.Second
}

func floatEnv(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

// SystemConfig holds technical parameters that may be hot-reloaded from
// system.json via WatchSystemConfig without restarting the whole pipeline:
// channel capacities, retry bounds, and external-call timeouts.
type SystemConfig struct {
	// ChannelBuffer is the bounded capacity shared by the valid-message,
	// classified-message, state-event, and archival channels.
	ChannelBuffer int `json:"channel_buffer"`
	// MaxRetries bounds the exponential-backoff retry attempts for
	// archive writes. Classifier and embedding calls are not retried, and
	// the continuation call's single retry does not read this value.
	MaxRetries int `json:"max_retries"`
	// HTTPTimeoutMs is the per-request timeout for the classifier and
	// embedding HTTP clients.
	HTTPTimeoutMs int `json:"http_timeout_ms"`
	// LLMTimeoutMs is the per-call timeout for the continuation and
	// datetime-extraction LLM calls (default 30s).
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// LogLevel sets the minimum severity for log output.
	LogLevel string `json:"log_level"`
}

// DefaultSystemConfig returns conservative defaults used when system.json
// is absent or fails to parse.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		ChannelBuffer: 100,
		MaxRetries:    3,
		HTTPTimeoutMs: 10000,
		LLMTimeoutMs:  30000,
		LogLevel:      "info",
	}
}

// LoadSystemConfig attempts to load system.json, falling back to
// DefaultSystemConfig on any error (missing file, malformed JSON).
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(file, cfg); err != nil {
		return cfg
	}
	return cfg
}
