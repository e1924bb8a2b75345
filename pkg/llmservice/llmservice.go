// Package llmservice adapts the external large-language-model service
// consulted for disentanglement (the LLM continuation strategy) and
// event-datetime extraction. Providers register through a factory
// registry, so new backends can be added without touching the
// Disentangler or Lifecycle Evaluator.
package llmservice

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContinuationResult is the constrained JSON document the continuation call
// must return.
type ContinuationResult struct {
	NewMessage string `json:"new_message"`
	Option     int    `json:"option"`
	Reason     string `json:"reason"`
}

// DatetimeResult is the constrained JSON document the datetime-extraction
// call must return.
type DatetimeResult struct {
	EventDatetime  string `json:"event_datetime"`
	DatetimeExists bool   `json:"datetime_exists"`
	Reason         string `json:"reason"`
}

// Client is the narrow surface this repository needs from an LLM backend:
// two non-streaming calls in the provider's JSON output mode. The expected
// document shape is stated in the prompt; it is not passed to the provider
// as a response schema. Implementations send temperature 0; none of them
// sets a context-window size, which is left to the configured model.
type Client interface {
	// Continuation asks which of the enumerated window options (1-based)
	// the new message continues, or -1 for none.
	Continuation(ctx context.Context, windowText []string, newMessage string) (ContinuationResult, error)
	// ExtractDatetime asks whether the conversation text names a concrete
	// future event datetime, and if so, what it is.
	ExtractDatetime(ctx context.Context, conversationText string, now time.Time) (DatetimeResult, error)
	// IsTransientError reports whether err is a retryable failure (timeout,
	// 5xx, rate limit) as opposed to a permanent one.
	IsTransientError(err error) bool
}

// ProviderConfig configures a single provider instantiation (one of
// gemini | openai | ollama).
type ProviderConfig struct {
	Type    string         `json:"type"`
	APIKey  string         `json:"api_key,omitempty"`
	Model   string         `json:"model"`
	BaseURL string         `json:"base_url,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// ProviderFactory constructs a Client from a ProviderConfig. Each provider
// package registers one via RegisterProvider in its init().
type ProviderFactory interface {
	Create(cfg ProviderConfig) (Client, error)
}

var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider adds a ProviderFactory to the global registry. Called
// from each provider subpackage's init().
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory returns a registered ProviderFactory by name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}
