package disentangle

import (
	"context"
	"errors"
	"fmt"

	"confluence/pkg/llmservice"
	"confluence/pkg/model"
)

// LLMStrategy is the primary continuation classifier:
// formats the window as enumerated options and asks an external chat
// model which one, if any, the new message continues.
type LLMStrategy struct {
	client llmservice.Client
}

// NewLLMStrategy constructs an LLMStrategy over the given provider client.
func NewLLMStrategy(client llmservice.Client) *LLMStrategy {
	return &LLMStrategy{client: client}
}

// Option asks the LLM which window entry (1-based) m continues, or -1.
func (s *LLMStrategy) Option(ctx context.Context, window []model.ClassifiedMessage, m model.ClassifiedMessage) (int, error) {
	windowText := make([]string, len(window))
	for i, w := range window {
		windowText[i] = fmt.Sprintf("%s: %s", w.User, w.Text)
	}

	result, err := s.client.Continuation(ctx, windowText, m.Text)
	if err != nil {
		return 0, err
	}
	return result.Option, nil
}

// IsTransient reports whether err came from a retryable failure of the
// underlying provider.
func (s *LLMStrategy) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return s.client.IsTransientError(err)
}
