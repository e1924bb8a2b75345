// Package openai adapts the OpenAI chat completions API as an
// llmservice.Client: a single non-streaming, JSON-mode call per request.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"confluence/pkg/llmservice"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client wraps the official OpenAI Go SDK.
type Client struct {
	client openai.Client
	model  string
}

// New constructs an OpenAI-backed llmservice.Client.
func New(apiKey, model, baseURL string) (*Client, error) {
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: openai.NewClient(opts...), model: model}, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Continuation implements llmservice.Client.
func (c *Client) Continuation(ctx context.Context, windowText []string, newMessage string) (llmservice.ContinuationResult, error) {
	raw, err := c.generateJSON(ctx, llmservice.ContinuationPrompt(windowText, newMessage))
	if err != nil {
		return llmservice.ContinuationResult{}, err
	}
	var out llmservice.ContinuationResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return llmservice.ContinuationResult{}, fmt.Errorf("openai: decode continuation response: %w", err)
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
		return llmservice.DatetimeResult{}, fmt.Errorf("openai: decode datetime response: %w", err)
	}
	return out, nil
}

// IsTransientError implements llmservice.Client.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "503")
}

func init() {
	llmservice.RegisterProvider("openai", factory{})
}

type factory struct{}

func (factory) Create(cfg llmservice.ProviderConfig) (llmservice.Client, error) {
	return New(cfg.APIKey, cfg.Model, cfg.BaseURL)
}
