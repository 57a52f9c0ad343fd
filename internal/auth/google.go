package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

// googleProvider wraps the oauth2 package's Google client.
type googleProvider struct {
	cfg       *oauth2.Config
	revokeURL string
	client    *http.Client
}

// NewGoogle creates the Google provider adapter. The scope is read-only
// Gmail access, which is all the scanner needs.
func NewGoogle(clientID, clientSecret, redirectURL string) Provider {
	return &googleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
			Endpoint:     google.Endpoint,
		},
		revokeURL: googleRevokeURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *googleProvider) AuthURL(state string) string {
	// access_type=offline plus prompt=consent so Google returns a refresh
	// token even when the user authorized before.
	return p.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (Credential, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return Credential{}, googleTokenError("exchange", err)
	}
	return credentialFromToken(tok, "exchange")
}

func (p *googleProvider) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	src := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Credential{}, googleTokenError("refresh", err)
	}
	cred, err := credentialFromToken(tok, "refresh")
	if err != nil {
		return Credential{}, err
	}
	// Google omits the refresh token from refresh responses; keep the old one.
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// Revoke calls Google's token revocation endpoint. Revoking the refresh
// token invalidates the whole grant.
func (p *googleProvider) Revoke(ctx context.Context, cred Credential) error {
	token := cred.RefreshToken
	if token == "" {
		token = cred.AccessToken
	}
	form := url.Values{}
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: status %d", resp.StatusCode)
	}
	return nil
}

// credentialFromToken converts an oauth2 token into the common credential
// shape, rejecting responses without an access token.
func credentialFromToken(tok *oauth2.Token, op string) (Credential, error) {
	if tok.AccessToken == "" {
		return Credential{}, &TokenError{Op: op, Description: "response contained no access token"}
	}
	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

// googleTokenError maps oauth2 retrieval failures to the typed token error,
// preserving network errors as plain wrapped errors.
func googleTokenError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		te := &TokenError{Op: op, Code: rerr.ErrorCode, Description: rerr.ErrorDescription}
		if rerr.Response != nil {
			te.StatusCode = rerr.Response.StatusCode
		}
		if te.Code == "" && te.Description == "" {
			te.Description = string(rerr.Body)
		}
		return te
	}
	return fmt.Errorf("token %s: %w", op, err)
}
