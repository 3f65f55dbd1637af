package source

import (
	"fmt"
	"time"
)

// RemoteError is the base error for non-2xx responses from the remote
// knowledge-base API.
type RemoteError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		if e.Code != "" {
			return fmt.Sprintf("remote error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
		}
		return fmt.Sprintf("remote error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote error: status=%d", e.StatusCode)
}

// AuthError indicates an invalid or expired credential (401).
type AuthError struct{ *RemoteError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.RemoteError.Error())
}

// ForbiddenError indicates the credential lacks permission (403).
type ForbiddenError struct{ *RemoteError }

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access forbidden: %s", e.RemoteError.Error())
}

// NotFoundError indicates the requested node or document is gone (404).
type NotFoundError struct{ *RemoteError }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.RemoteError.Error())
}

// RateLimitError indicates 429 responses and may carry a Retry-After.
type RateLimitError struct {
	*RemoteError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.RemoteError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.RemoteError.Error())
}

// ServerError indicates 5xx errors from the remote service.
type ServerError struct{ *RemoteError }

func (e *ServerError) Error() string {
	return fmt.Sprintf("remote service error: %s", e.RemoteError.Error())
}
