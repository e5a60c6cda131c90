// internal/backend/openai.go
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

// DefaultOpenAIURL is the hosted chat-completions endpoint used when a
// backend entry does not override the url field.
const DefaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to the hosted OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client *http.Client
	apiKey string
}

// NewOpenAIClient constructs an OpenAIClient around the shared HTTP client.
func NewOpenAIClient(client *http.Client, apiKey string) *OpenAIClient {
	return &OpenAIClient{client: client, apiKey: apiKey}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Send submits the prompt as a single user message and returns the first
// generated message's content.
func (c *OpenAIClient) Send(ctx context.Context, prompt string, b appconfig.Backend) (string, error) {
	payload := chatCompletionRequest{
		Model:       b.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat completion request: %w", err)
	}

	endpoint := b.URL
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultOpenAIURL
	}
	logging.LogRequest("KRITES->LLM", b.Name, b.Model, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UnreachableError{Backend: b.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat completion response: %w", err)
	}
	logging.LogRequest("LLM->KRITES", b.Name, b.Model, respBody)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitedError{Backend: b.Name}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &BackendError{
			Backend:    b.Name,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: chat completion response contained no choices", b.Name)
	}

	return parsed.Choices[0].Message.Content, nil
}
