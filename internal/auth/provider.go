package auth

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies the OAuth provider backing a mailbox host. It is selected
// once at startup and never changes for the process lifetime.
type Kind int

const (
	KindGoogle Kind = iota
	KindMicrosoft
)

// KindForHost maps a mail host name to its provider.
func KindForHost(host string) Kind {
	h := strings.ToLower(host)
	if strings.Contains(h, "gmail") || strings.Contains(h, "googlemail") || strings.Contains(h, "google") {
		return KindGoogle
	}
	return KindMicrosoft
}

func (k Kind) String() string {
	switch k {
	case KindGoogle:
		return "google"
	case KindMicrosoft:
		return "microsoft"
	default:
		return "unknown"
	}
}

// Provider abstracts one OAuth provider's grant operations. Implementations
// must return a fully populated Credential or an error, never both halves.
type Provider interface {
	// AuthURL builds the provider authorization URL for the given
	// CSRF state token.
	AuthURL(state string) string

	// Exchange trades an authorization code for a fresh credential.
	Exchange(ctx context.Context, code string) (Credential, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (Credential, error)

	// Revoke invalidates the credential with the provider.
	Revoke(ctx context.Context, cred Credential) error
}

// TokenError is an error-shaped response from a provider token endpoint.
type TokenError struct {
	Op          string // "exchange" or "refresh"
	StatusCode  int
	Code        string // provider error code, e.g. "invalid_grant"
	Description string
}

func (e *TokenError) Error() string {
	msg := fmt.Sprintf("token %s failed (status %d)", e.Op, e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}
