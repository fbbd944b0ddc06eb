package datagov

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra context.
var (
	// ErrMissingAPIKey is returned before any network activity when no API
	// key is configured.
	ErrMissingAPIKey = errors.New("data.gov.in API key is required (set DATA_GOV_IN_API_KEY)")

	// ErrRateLimited reports an upstream 429. Local pacing already happened,
	// so the call is surfaced to the caller instead of retried.
	ErrRateLimited = errors.New("data.gov.in rate limit exceeded, try again later")
)

// InvalidParameterError reports a caller-supplied value out of range.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// NotFoundError reports a resource id the API does not know.
type NotFoundError struct {
	ResourceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", e.ResourceID)
}

// APIError carries a non-OK upstream status and body text for diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Body)
}

// NetworkError wraps a transport-level failure (timeout, connection error).
// It is the only error kind the client retries.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// retryable reports whether a failed attempt may be retried.
func retryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
