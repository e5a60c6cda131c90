// internal/backend/client.go

// Package backend provides the uniform request/response contract over the
// distinct network backends under evaluation. A Client sends exactly one
// prompt and returns the generated text or a typed error; retry policy lives
// in the retry package so it stays backend-agnostic.
package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mwiater/krites/internal/appconfig"
)

// Client is the interface every backend variant implements.
type Client interface {
	// Send submits one prompt to the backend described by b and returns the
	// raw generated text. It performs a single request: no retries.
	Send(ctx context.Context, prompt string, b appconfig.Backend) (string, error)
}

// NewClient selects and configures the client variant for a backend entry.
// The selection happens once at configuration-load time; callers hold the
// returned Client for the life of the run.
func NewClient(cfg *appconfig.Config, b appconfig.Backend) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to client factory")
	}

	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout(),
		Transport: &http.Transport{ForceAttemptHTTP2: false},
	}

	switch b.Type {
	case appconfig.BackendOpenAI:
		return NewOpenAIClient(httpClient, cfg.OpenAIAPIKey), nil
	case appconfig.BackendOllama:
		return NewOllamaClient(httpClient), nil
	default:
		return nil, fmt.Errorf("backend %q has unsupported type %q", b.Name, b.Type)
	}
}
