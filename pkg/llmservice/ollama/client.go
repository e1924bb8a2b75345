// Package ollama adapts a local Ollama server as an llmservice.Client:
// a single non-streaming, JSON-format chat call per request.
package ollama

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"

	"confluence/pkg/llmservice"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
	model  string
}

// New constructs an Ollama-backed llmservice.Client. Disentanglement and
// datetime extraction are both latency-sensitive pipeline stages, so the
// transport keeps conservative timeouts. That transport is used only when
// baseURL is set; otherwise the client comes from api.ClientFromEnvironment
// with its own HTTP client.
func New(model, baseURL string) (*Client, error) {
	if model == "" {
		model = "llama3.1"
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 60 * time.Second}

	var client *api.Client
	var err error
	if baseURL != "" {
		u, parseErr := url.Parse(baseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("ollama: invalid base url: %w", parseErr)
		}
		client = api.NewClient(u, httpClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: client from environment: %w", err)
		}
	}

	return &Client{client: client, model: model}, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	streamOff := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Format: []byte(`"json"`),
		Stream: &streamOff,
		Options: map[string]any{
			"temperature": 0.0,
		},
	}

	var content string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: chat: %w", err)
	}
	if content == "" {
		return "", fmt.Errorf("ollama: empty response")
	}
	return content, nil
}

// Continuation implements llmservice.Client.
func (c *Client) Continuation(ctx context.Context, windowText []string, newMessage string) (llmservice.ContinuationResult, error) {
	raw, err := c.generateJSON(ctx, llmservice.ContinuationPrompt(windowText, newMessage))
	if err != nil {
		return llmservice.ContinuationResult{}, err
	}
	var out llmservice.ContinuationResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return llmservice.ContinuationResult{}, fmt.Errorf("ollama: decode continuation response: %w", err)
	}
	out.Option = llmservice.ClampOption(out.Option, len(windowText))
	return out, nil
}

// ExtractDatetime implements llmservice.Client.
func (c *Client) ExtractDatetime(ctx context.Context, conversationText string, now time.Time) (llmservice.DatetimeResult, error) {
	raw, err := c.generateJSON(ctx, llmservice.DatetimePrompt(conversationText, now))
	if err != nil {
		return llmservice.DatetimeResult{}, err
	}
	var out llmservice.DatetimeResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return llmservice.DatetimeResult{}, fmt.Errorf("ollama: decode datetime response: %w", err)
	}
	return out, nil
}

// IsTransientError implements llmservice.Client.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(strings.ToLower(msg), "overloaded") ||
		strings.Contains(msg, "context deadline exceeded")
}

func init() {
	llmservice.RegisterProvider("ollama", factory{})
}

type factory struct{}

func (factory) Create(cfg llmservice.ProviderConfig) (llmservice.Client, error) {
	return New(cfg.Model, cfg.BaseURL)
}
