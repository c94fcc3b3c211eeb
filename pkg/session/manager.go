package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cexll/storefront-go/pkg/kvstore"
	"github.com/cexll/storefront-go/pkg/transport"
)

// DefaultTokenKey is the storage key the raw token persists under.
const DefaultTokenKey = "token"

// CredentialSink receives the default bearer credential for outgoing calls.
// *transport.Client satisfies it.
type CredentialSink interface {
	SetToken(token string)
	ClearToken()
}

// TokenIssuer exchanges credentials for tokens at the user service.
// *transport.Client satisfies it.
type TokenIssuer interface {
	Login(ctx context.Context, email, password string) (transport.AuthResponse, error)
	Register(ctx context.Context, username, email, password string) (transport.AuthResponse, error)
}

// Manager owns the session lifecycle and the process-wide credential swap.
type Manager struct {
	store    kvstore.Store
	sink     CredentialSink
	issuer   TokenIssuer
	decoder  Decoder
	tokenKey string

	mu      sync.RWMutex
	state   State
	current Session
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithDecoder swaps the claims decoder. Defaults to JWTDecoder.
func WithDecoder(d Decoder) ManagerOption {
	return func(m *Manager) {
		if d != nil {
			m.decoder = d
		}
	}
}

// WithTokenKey overrides the storage key the token persists under.
func WithTokenKey(key string) ManagerOption {
	return func(m *Manager) {
		if strings.TrimSpace(key) != "" {
			m.tokenKey = key
		}
	}
}

// WithIssuer wires the remote user service for LoginWithPassword/Register.
func WithIssuer(issuer TokenIssuer) ManagerOption {
	return func(m *Manager) { m.issuer = issuer }
}

// NewManager builds a session manager over the given storage and credential
// sink.
func NewManager(store kvstore.Store, sink CredentialSink, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		sink:     sink,
		decoder:  JWTDecoder{},
		tokenKey: DefaultTokenKey,
		state:    StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap restores the session from durable storage. A stored token that
// no longer decodes is removed and the session self-heals to
// unauthenticated; that outcome is not an error. Bootstrap is meant to run
// once at process start; while it runs, Loading reports true so dependent
// reads can hold off.
func (m *Manager) Bootstrap() error {
	m.mu.Lock()
	m.state = StateAuthenticating
	m.mu.Unlock()

	token, err := m.store.Get(m.tokenKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			m.clear()
			return nil
		}
		m.clear()
		return fmt.Errorf("session: read stored token: %w", err)
	}

	claims, err := m.decoder.Decode(token)
	if err != nil {
		// Malformed stored token: scrub it so the next start is clean.
		_ = m.store.Delete(m.tokenKey)
		m.clear()
		return nil
	}

	m.apply(token, claims)
	return nil
}

// Login decodes token, persists it, and registers it as the default
// credential. Decode failure performs the full logout cleanup, never leaving
// a half-set session.
func (m *Manager) Login(token string) error {
	if strings.TrimSpace(token) == "" {
		m.Logout()
		return ErrEmptyToken
	}
	claims, err := m.decoder.Decode(token)
	if err != nil {
		m.Logout()
		return err
	}
	if err := m.store.Set(m.tokenKey, token); err != nil {
		m.Logout()
		return fmt.Errorf("session: persist token: %w", err)
	}
	m.apply(token, claims)
	return nil
}

// LoginWithPassword exchanges credentials at the user service and logs the
// returned token in.
func (m *Manager) LoginWithPassword(ctx context.Context, email, password string) error {
	if m.issuer == nil {
		return fmt.Errorf("session: no token issuer configured")
	}
	resp, err := m.issuer.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.Login(resp.Token)
}

// Register creates an account at the user service and logs the returned
// token in.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	if m.issuer == nil {
		return fmt.Errorf("session: no token issuer configured")
	}
	resp, err := m.issuer.Register(ctx, username, email, password)
	if err != nil {
		return err
	}
	return m.Login(resp.Token)
}

// Logout clears the session, the persisted token, and the default
// credential.
func (m *Manager) Logout() {
	_ = m.store.Delete(m.tokenKey)
	m.clear()
}

// Current returns a snapshot of the session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := m.current
	if m.current.User != nil {
		user := *m.current.User
		snapshot.User = &user
	}
	return snapshot
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Loading reports whether the bootstrap decode is still in progress.
func (m *Manager) Loading() bool {
	return m.State() == StateAuthenticating
}

// UserEmail returns the authenticated user's email, or ErrNotAuthenticated.
func (m *Manager) UserEmail() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated || m.current.User == nil {
		return "", ErrNotAuthenticated
	}
	return m.current.User.Email, nil
}

func (m *Manager) apply(token string, claims Claims) {
	if m.sink != nil {
		m.sink.SetToken(token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAuthenticated
	m.current = Session{Token: token, User: &claims}
}

func (m *Manager) clear() {
	if m.sink != nil {
		m.sink.ClearToken()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.current = Session{}
}
