// Package session owns the authentication token lifecycle: bootstrap from
// durable storage, login, logout, and the user identity derived from the
// token's claims.
package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated indicates an operation requires a signed-in user.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrEmptyToken indicates a blank token was supplied to Login.
	ErrEmptyToken = errors.New("session: empty token")
)

// State names the position of the session lifecycle.
type State string

const (
	// StateUnauthenticated means no valid token is held.
	StateUnauthenticated State = "unauthenticated"
	// StateAuthenticating means the bootstrap decode is in progress.
	StateAuthenticating State = "authenticating"
	// StateAuthenticated means a decoded user identity is available.
	StateAuthenticated State = "authenticated"
)

// Claims is the user identity carried inside a token.
type Claims struct {
	Email    string
	Username string
}

// Session is the client's belief about the current identity. User is non-nil
// exactly when Token decoded successfully and has not been cleared.
type Session struct {
	Token string
	User  *Claims
}

// Decoder extracts claims from an opaque signed token. Implementations never
// need to verify the signature; the remote services do that on every call.
type Decoder interface {
	Decode(token string) (Claims, error)
}

// TokenDecodeError reports a token that could not be decoded. It always
// resolves to an unauthenticated session, never to a partial one.
type TokenDecodeError struct {
	Err error
}

func (e *TokenDecodeError) Error() string {
	return fmt.Sprintf("session: token decode failed: %v", e.Err)
}

func (e *TokenDecodeError) Unwrap() error { return e.Err }
