// internal/scoring/embedding.go
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/krites/internal/appconfig"
)

// EmbeddingSimilarity measures text similarity as the cosine of embedding
// vectors fetched from an Ollama-compatible /api/embeddings endpoint.
type EmbeddingSimilarity struct {
	client  *http.Client
	url     string
	model   string
	timeout time.Duration
}

// NewEmbeddingSimilarity configures the measure from the embedding section
// of the application config.
func NewEmbeddingSimilarity(cfg *appconfig.Config) (*EmbeddingSimilarity, error) {
	if strings.TrimSpace(cfg.Embedding.URL) == "" {
		return nil, fmt.Errorf("embedding url is empty")
	}
	if strings.TrimSpace(cfg.Embedding.Model) == "" {
		return nil, fmt.Errorf("embedding model is empty")
	}
	timeout := cfg.RequestTimeout()
	return &EmbeddingSimilarity{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		url:     strings.TrimRight(cfg.Embedding.URL, "/"),
		model:   cfg.Embedding.Model,
		timeout: timeout,
	}, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Compare embeds both texts and returns their cosine similarity.
func (e *EmbeddingSimilarity) Compare(ctx context.Context, a, b string) (float64, error) {
	vecA, err := e.embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vecB, err := e.embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(vecA, vecB), nil
}

// embed requests an embedding vector for a single text.
func (e *EmbeddingSimilarity) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}

	return parsed.Embedding, nil
}

func cosineSimilarity(a, b []float64) float64 {
	normA := vectorNorm(a)
	if normA == 0 {
		return 0
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	dot := 0.0
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}
