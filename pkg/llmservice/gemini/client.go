// Package gemini adapts Google's Gemini API as an llmservice.Client.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/genai"

	"confluence/pkg/llmservice"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client wraps google.golang.org/genai for the two non-streaming,
// JSON-constrained calls this repository needs.
type Client struct {
	client *genai.Client
	model  string
}

// New constructs a Gemini-backed llmservice.Client.
func New(apiKey, model string) (*Client, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	ctx := context.Background()
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	return &Client{client: c, model: model}, nil
}

var zeroTemp float32 = 0

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      &zeroTemp,
		ResponseMIMEType: "application/json",
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// Continuation implements llmservice.Client.
func (c *Client) Continuation(ctx context.Context, windowText []string, newMessage string) (llmservice.ContinuationResult, error) {
	raw, err := c.generateJSON(ctx, llmservice.ContinuationPrompt(windowText, newMessage))
	if err != nil {
		return llmservice.ContinuationResult{}, err
	}
	var out llmservice.ContinuationResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return llmservice.ContinuationResult{}, fmt.Errorf("gemini: decode continuation response: %w", err)
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
		return llmservice.DatetimeResult{}, fmt.Errorf("gemini: decode datetime response: %w", err)
	}
	return out, nil
}

// IsTransientError implements llmservice.Client.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "connection refused")
}

func init() {
	llmservice.RegisterProvider("gemini", factory{})
}

type factory struct{}

func (factory) Create(cfg llmservice.ProviderConfig) (llmservice.Client, error) {
	return New(cfg.APIKey, cfg.Model)
}
