package transport

import (
	"errors"
	"fmt"
)

// ErrNoCredential indicates an authenticated call was requested while no
// bearer token is registered. Callers treat this as "query disabled", not
// as a failure to report.
var ErrNoCredential = errors.New("transport: credential required")

// NetworkError wraps a transport failure that happened before any response
// arrived.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transport: %s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Message returns user-facing text for the failure.
func (e *NetworkError) Message() string { return "" }

// AuthError reports a rejected or missing credential (HTTP 401/403).
type AuthError struct {
	Op     string
	Status int
	Remote string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("transport: %s: auth rejected (status %d)", e.Op, e.Status)
}

// Message returns the server-supplied text when present.
func (e *AuthError) Message() string { return e.Remote }

// ValidationError reports a structured 4xx rejection.
type ValidationError struct {
	Op     string
	Status int
	Remote string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transport: %s: rejected (status %d): %s", e.Op, e.Status, e.Remote)
}

// Message returns the server-supplied text when present.
func (e *ValidationError) Message() string { return e.Remote }

// ServerError reports a 5xx response.
type ServerError struct {
	Op     string
	Status int
	Remote string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("transport: %s: server failure (status %d)", e.Op, e.Status)
}

// Message returns the server-supplied text when present.
func (e *ServerError) Message() string { return e.Remote }

// Messager is implemented by errors carrying user-facing text.
type Messager interface {
	Message() string
}

// UserMessage extracts user-facing text from err, falling back to fallback
// when the error carries none.
func UserMessage(err error, fallback string) string {
	var m Messager
	if errors.As(err, &m) {
		if msg := m.Message(); msg != "" {
			return msg
		}
	}
	return fallback
}
