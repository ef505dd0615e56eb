package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoAccessToken  = errors.New("no access token available")
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRefreshed marks a 401 that was answered with a successful
	// token refresh. The original call was not reissued; the caller may
	// repeat it with the new credential.
	ErrSessionRefreshed = errors.New("session refreshed")
)

// NetworkError reports a transport-level failure: no HTTP response was
// obtained (connection refused, DNS failure, or the per-attempt timeout).
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthenticationError reports HTTP 401 semantics or a missing/expired
// credential detected before the call was made.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// APIError reports any other non-2xx response, carrying the status code,
// an optional application error code, and the raw decoded body for
// diagnostics.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Details    map[string]any
	RetryAfter time.Duration // from the Retry-After header on 429 responses
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

// ParseError reports a 2xx response whose body could not be decoded as the
// expected structure. It is never produced for empty 204 responses.
type ParseError struct {
	Status int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response (status %d): %v", e.Status, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err is authentication-class.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsNetwork reports whether err is network-class.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// ErrorMessage reduces any error from the executor to a user-facing
// message. Unexpected errors collapse to a generic message rather than
// leaking internals.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}

	if IsNetwork(err) {
		return "Network error: please check your connection and try again."
	}

	if IsAuthentication(err) {
		return "Session expired. Please log in again."
	}

	return "An unexpected error occurred."
}

// retryable reports whether an attempt that failed with err may be
// reissued. Authentication failures and non-429 client errors are fatal
// to the attempt; everything else (network failures, 5xx, 429) is
// transient.
func retryable(err error) bool {
	if IsAuthentication(err) {
		return false
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429 {
			return false
		}
	}

	return true
}
