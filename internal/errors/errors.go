// Package errors defines the error values shared across etp and helpers for
// classifying them.
//
// Sentinel errors describe conditions callers branch on:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//
// Failed HTTP exchanges with the ETP server are reported as *APIError, which
// unwraps to the sentinel matching its status code:
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) { log.Warn("request failed", "status", apiErr.StatusCode) }
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

var (
	// ErrNotFound indicates that the requested entity no longer exists on the server.
	ErrNotFound = New("not found")
	// ErrUnauthorized indicates that the server rejected the credentials.
	ErrUnauthorized = New("unauthorized")
	// ErrConflict indicates that the entity is in a state that does not allow the action.
	ErrConflict = New("conflict")
	// ErrLocked indicates that another process holds a lock.
	ErrLocked = New("locked by another process")
	// ErrPassInProgress indicates that a refresh of the same root is still running.
	ErrPassInProgress = New("refresh already in progress")
	// ErrInvalidConfig indicates that the configuration failed validation.
	ErrInvalidConfig = New("invalid configuration")
	// ErrServerError indicates a 5xx response.
	ErrServerError = New("server error")
)

// APIError describes a non-2xx response from the ETP server.
type APIError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	// Detail is the "detail" field of the response body, or the raw body
	// when it is not JSON.
	Detail string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// Unwrap maps the status code to a sentinel so errors.Is works on API errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode >= 500:
		return ErrServerError
	default:
		return nil
	}
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// IsNotFound reports whether err means the entity is gone.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

// IsRetryable reports whether err is transient: a 5xx response or a network
// failure. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return false
	}
	if Is(err, ErrServerError) {
		return true
	}
	var netErr net.Error
	return As(err, &netErr)
}

// UserMessage returns a short message suitable for the status bar.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case Is(err, ErrNotFound):
		return "no longer exists on the server"
	case Is(err, ErrUnauthorized):
		return "server rejected the credentials"
	case Is(err, ErrPassInProgress):
		return "refresh already in progress"
	case As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	default:
		return err.Error()
	}
}
