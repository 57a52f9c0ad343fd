package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// State names a phase of the credential lifecycle.
type State int

const (
	StateNoCredential State = iota
	StateCachedValid
	StateCachedExpired
	StateAuthorizing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNoCredential:
		return "no-credential"
	case StateCachedValid:
		return "cached-valid"
	case StateCachedExpired:
		return "cached-expired"
	case StateAuthorizing:
		return "authorizing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthorizationError is a fatal failure of the interactive grant. The run
// must stop and exit non-zero; no credential is persisted.
type AuthorizationError struct {
	Err error
}

func (e *AuthorizationError) Error() string {
	return "authorization failed: " + e.Err.Error()
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Manager drives the credential lifecycle: load the cached credential,
// validate it, refresh it when expired, fall back to the full interactive
// flow when nothing else works, and persist the result. It exclusively owns
// the Credential; the Store only serializes it.
type Manager struct {
	store    *Store
	provider Provider
	flow     Flow
	logger   *slog.Logger
	state    State
}

// NewManager creates a credential lifecycle manager.
func NewManager(store *Store, provider Provider, flow Flow, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		provider: provider,
		flow:     flow,
		logger:   logger,
		state:    StateNoCredential,
	}
}

// State returns the lifecycle state after the last operation.
func (m *Manager) State() State {
	return m.state
}

// Token returns a usable access token, refreshing or reauthorizing as
// needed. A valid cached credential is returned without any network call.
func (m *Manager) Token(ctx context.Context) (string, error) {
	cred, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("credential cache unreadable", "error", err)
		}
		m.state = StateNoCredential
		return m.authorize(ctx)
	}

	if !cred.Expired() {
		m.state = StateCachedValid
		return cred.AccessToken, nil
	}

	m.state = StateCachedExpired
	if cred.RefreshToken != "" {
		refreshed, err := m.provider.Refresh(ctx, cred.RefreshToken)
		if err == nil {
			if err := m.store.Save(refreshed); err != nil {
				return "", fmt.Errorf("persist refreshed credential: %w", err)
			}
			m.state = StateCachedValid
			m.logger.Debug("access token refreshed")
			return refreshed.AccessToken, nil
		}
		// Any refresh failure falls through to the full interactive flow.
		m.logger.Warn("token refresh failed, reauthorizing", "error", err)
	}
	return m.authorize(ctx)
}

func (m *Manager) authorize(ctx context.Context) (string, error) {
	m.state = StateAuthorizing

	state, err := randomState()
	if err != nil {
		m.state = StateFailed
		return "", &AuthorizationError{Err: err}
	}

	code, err := m.flow.Authorize(ctx, m.provider.AuthURL(state))
	if err != nil {
		m.state = StateFailed
		return "", &AuthorizationError{Err: err}
	}

	cred, err := m.provider.Exchange(ctx, code)
	if err != nil {
		m.state = StateFailed
		return "", &AuthorizationError{Err: err}
	}

	if err := m.store.Save(cred); err != nil {
		m.state = StateFailed
		return "", &AuthorizationError{Err: err}
	}

	m.state = StateCachedValid
	m.logger.Info("authorization complete")
	return cred.AccessToken, nil
}

// Revoke invalidates the grant with the provider (best effort, failures
// logged) and unconditionally deletes the cached credential. Safe to call
// from any state.
func (m *Manager) Revoke(ctx context.Context) error {
	if cred, err := m.store.Load(); err == nil {
		if err := m.provider.Revoke(ctx, cred); err != nil {
			m.logger.Warn("provider revoke failed", "error", err)
		}
	}
	m.state = StateNoCredential
	return m.store.Delete()
}

// randomState produces the CSRF state token for one authorization attempt.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
