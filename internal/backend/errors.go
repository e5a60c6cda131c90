// internal/backend/errors.go
package backend

import "fmt"

// BackendError reports a request the remote service rejected outright.
// It carries the HTTP status and response body for diagnostics.
type BackendError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Backend, e.StatusCode, e.Body)
}

// RateLimitedError signals the remote service's throttling response.
// Retrying after backoff is the expected reaction.
type RateLimitedError struct {
	Backend string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded", e.Backend)
}

// UnreachableError reports a transport-level failure: the service could not
// be reached at all, as opposed to rejecting the request. For local backends
// this usually means the server is not running.
type UnreachableError struct {
	Backend string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Backend, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
