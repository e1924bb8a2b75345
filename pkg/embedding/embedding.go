// Package embedding adapts the external sentence-embedding model used by
// the semantic-similarity disentanglement signal.
package embedding

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"confluence/pkg/httpkit"
	"confluence/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Embedder returns a fixed-length, L2-normalised embedding for text.
// Implementations must be safe for concurrent use; the client is shared
// across stages.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HTTPEmbedder calls a JSON endpoint: POST {"text": "..."} ->
// {"embedding": [...]}.
type HTTPEmbedder struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEmbedder builds an HTTPEmbedder against endpoint.
func NewHTTPEmbedder(endpoint string, timeout time.Duration) *HTTPEmbedder {
	return &HTTPEmbedder{
		endpoint: endpoint,
		client:   httpkit.NewClient(timeout),
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Embedder.
func (h *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w: %v", model.ErrTransientExternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embedding: %w: status %d: %s", model.ErrTransientExternal, resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: status %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	return out.Embedding, nil
}

// CosineSimilarity computes the cosine similarity between two vectors. Since
// the embedding model is expected to return L2-normalised
// vectors, this reduces to a dot product; it is implemented via the full
// formula so it also behaves correctly for vectors that are not normalised
// (e.g. in tests).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
