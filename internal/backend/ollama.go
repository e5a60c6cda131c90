// internal/backend/ollama.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mwiater/krites/internal/appconfig"
	"github.com/mwiater/krites/internal/logging"
)

// OllamaClient talks to a locally served Ollama-compatible generate API.
type OllamaClient struct {
	client *http.Client
}

// NewOllamaClient constructs an OllamaClient around the shared HTTP client.
func NewOllamaClient(client *http.Client) *OllamaClient {
	return &OllamaClient{client: client}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Send posts the prompt to the backend's /api/generate endpoint and returns
// the generated text. A transport failure maps to UnreachableError since it
// implies the local service is down rather than rejecting the request.
func (c *OllamaClient) Send(ctx context.Context, prompt string, b appconfig.Backend) (string, error) {
	payload := generateRequest{
		Model:   b.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: b.Temperature},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}
	logging.LogRequest("KRITES->LLM", b.Name, b.Model, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(b.URL, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UnreachableError{Backend: b.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	logging.LogRequest("LLM->KRITES", b.Name, b.Model, respBody)

	if resp.StatusCode != http.StatusOK {
		return "", &BackendError{
			Backend:    b.Name,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse generate response: %w", err)
	}

	return parsed.Response, nil
}
