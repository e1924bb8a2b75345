// Package classifier adapts the external binary calendar-scheduling
// classifier behind a small interface, normalising text
// before invoking it.
package classifier

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"confluence/pkg/httpkit"
	"confluence/pkg/model"
	"confluence/pkg/normalize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Classifier scores a single normalised string and reports whether it is
// calendar-related. Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (label string, score float64, err error)
}

// Classify runs the full Calendar Classifier contract: normalise then
// invoke c, attaching the result to msg. The stored msg.Text is left
// untouched; only the normalised copy is sent to the classifier.
func Classify(ctx context.Context, c Classifier, msg model.Message) (model.ClassifiedMessage, error) {
	normalised := normalize.Clean(msg.Text)
	label, score, err := c.Classify(ctx, normalised)
	if err != nil {
		return model.ClassifiedMessage{}, err
	}
	return model.ClassifiedMessage{Message: msg, Label: label, Score: score}, nil
}

// HTTPClassifier calls a JSON endpoint: POST {"text": "..."} ->
// {"label": "LABEL_0"|"LABEL_1", "score": float}.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClassifier builds an HTTPClassifier against endpoint, using the
// shared httpkit transport with the given per-request timeout.
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   httpkit.NewClient(timeout),
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements Classifier.
func (h *HTTPClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", 0, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("classifier: %w: %v", model.ErrTransientExternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", 0, fmt.Errorf("classifier: %w: status %d: %s", model.ErrTransientExternal, resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("classifier: status %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("classifier: decode response: %w", err)
	}
	return out.Label, out.Score, nil
}
