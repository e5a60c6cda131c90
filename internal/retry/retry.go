// internal/retry/retry.go

// Package retry wraps a single logical backend request with bounded retries,
// exponential backoff, and a fixed inter-request delay. All waiting is
// context-aware: an interrupt aborts a pending sleep and unwinds so the
// orchestrator can checkpoint and exit instead of blocking to completion.
package retry

import (
	"context"
	"time"

	"github.com/mwiater/krites/internal/appconfig"
	"github.com/mwiater/krites/internal/backend"
	"github.com/mwiater/krites/internal/logging"
	"github.com/mwiater/krites/internal/parse"
)

// AttemptResult is the outcome of one logical request after retries are
// exhausted or a success occurs. Its JSON shape is the per-backend entry
// persisted inside each method evaluation.
type AttemptResult struct {
	Backend         string                `json:"llm"`
	MethodSignature string                `json:"method_signature"`
	RawResponse     string                `json:"raw_response,omitempty"`
	Parsed          *parse.ParsedResponse `json:"parsed_response,omitempty"`
	Success         bool                  `json:"success"`
	Attempts        int                   `json:"attempt"`
	Timestamp       time.Time             `json:"timestamp"`
	Error           string                `json:"error,omitempty"`
}

// Controller executes backend requests under the retry policy. NewController
// fills in the production backoff unit; tests swap BackoffUnit down so retry
// schedules run in microseconds.
type Controller struct {
	Client backend.Client
	// BackoffUnit scales the 2^attempt backoff; one second in production.
	BackoffUnit time.Duration
}

// NewController builds a Controller around a backend client.
func NewController(client backend.Client) *Controller {
	return &Controller{
		Client:      client,
		BackoffUnit: time.Second,
	}
}

// Execute runs Client.Send with up to maxAttempts attempts, sleeping
// 2^attempt backoff units before each retry. On success the raw text is
// parsed and the result returned immediately. Either way the backend's
// configured rate-limit delay is applied before returning, throttling
// steady-state throughput independent of retry backoff. Failures are never
// escalated: the caller records the result and moves on.
func (c *Controller) Execute(ctx context.Context, prompt, signature string, b appconfig.Backend, maxAttempts int) AttemptResult {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	result := AttemptResult{
		Backend:         b.Name,
		MethodSignature: signature,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				lastErr = err
				result.Attempts = attempt
				break
			}
		}

		raw, err := c.Client.Send(ctx, prompt, b)
		if err != nil {
			lastErr = err
			result.Attempts = attempt + 1
			logging.LogEvent("Attempt %d/%d failed for %s on %s: %v", attempt+1, maxAttempts, b.Name, signature, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		parsed := parse.Response(raw)
		result.RawResponse = raw
		result.Parsed = &parsed
		result.Success = true
		result.Attempts = attempt + 1
		break
	}

	if !result.Success && lastErr != nil {
		result.Error = lastErr.Error()
	}
	result.Timestamp = time.Now()

	// Rate limiting applies regardless of outcome; cancellation just means
	// the delay no longer matters.
	_ = sleep(ctx, b.RateLimitDelay())

	return result
}

// backoff returns 2^attempt backoff units. Growth is unbounded with no
// jitter: the retry count is small enough that a cap buys nothing.
func (c *Controller) backoff(attempt int) time.Duration {
	unit := c.BackoffUnit
	if unit <= 0 {
		unit = time.Second
	}
	return time.Duration(1<<uint(attempt)) * unit
}

// sleep waits for d or until the context is canceled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
