package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrAuthentication means no valid session exists or the token was rejected.
	ErrAuthentication = errors.New("authentication required")
	// ErrNotFound means the repository, branch or path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMalformedResponse means the remote payload failed validation.
	ErrMalformedResponse = errors.New("malformed remote response")
)

// ErrorKind classifies a repository sync failure for display.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindNotFound  ErrorKind = "not-found"
	KindRateLimit ErrorKind = "rate-limit"
	KindNetwork   ErrorKind = "network"
	KindUnknown   ErrorKind = "unknown"
)

// RateLimit is a snapshot of the API quota taken from a response.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// RemoteAPIError is a non-2xx answer from the remote API.
type RemoteAPIError struct {
	StatusCode int
	Message    string
	RateLimit  *RateLimit
	Err        error
}

func (e *RemoteAPIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("remote API error (%d)", e.StatusCode)
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrNotFound on 404 and ErrAuthentication on 401.
func (e *RemoteAPIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// RateLimited reports whether the quota is exhausted.
func (e *RemoteAPIError) RateLimited() bool {
	if e.RateLimit == nil || e.RateLimit.Remaining != 0 {
		return false
	}
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// CorruptStateError describes an unreadable manifest. It is logged, never
// returned to callers.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt manifest %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// ClassifyError maps an error onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAuthentication) {
		return KindAuth
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	var apiErr *RemoteAPIError
	if errors.As(err, &apiErr) {
		if apiErr.RateLimited() {
			return KindRateLimit
		}
		return KindNetwork
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch ClassifyError(err) {
	case KindAuth:
		return "GitHub authentication is required. Sign in and retry: " + err.Error()
	case KindNotFound:
		return "Repository or path not found. Check your configuration."
	case KindRateLimit:
		var apiErr *RemoteAPIError
		errors.As(err, &apiErr)
		return fmt.Sprintf("GitHub API rate limit exceeded. Resets at %s.", apiErr.RateLimit.Reset.Local().Format(time.Kitchen))
	}
	return err.Error()
}
