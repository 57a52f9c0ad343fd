package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Microsoft identity platform endpoints.
const (
	msAuthURLTemplate  = "https://login.microsoftonline.com/%s/oauth2/v2.0/authorize"
	msTokenURLTemplate = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	msGraphRevokeURL   = "https://graph.microsoft.com/v1.0/me/revokeSignInSessions"
)

// msScopes cover read-only mailbox access plus offline_access for a
// refresh token.
var msScopes = []string{
	"offline_access",
	"https://outlook.office365.com/IMAP.AccessAsUser.All",
	"User.Read",
}

// microsoftProvider performs the token exchanges manually against the
// Microsoft identity platform; there is no SDK client involved.
type microsoftProvider struct {
	clientID     string
	clientSecret string
	redirectURI  string
	authURL      string
	tokenURL     string
	revokeURL    string
	client       *http.Client
	now          func() time.Time
}

// NewMicrosoft creates the Microsoft provider adapter for the given tenant
// ("common" for multi-tenant).
func NewMicrosoft(clientID, clientSecret, tenantID, redirectURL string) Provider {
	return &microsoftProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURL,
		authURL:      fmt.Sprintf(msAuthURLTemplate, tenantID),
		tokenURL:     fmt.Sprintf(msTokenURLTemplate, tenantID),
		revokeURL:    msGraphRevokeURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

func (p *microsoftProvider) AuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", p.clientID)
	params.Set("redirect_uri", p.redirectURI)
	params.Set("response_type", "code")
	params.Set("response_mode", "query")
	params.Set("scope", strings.Join(msScopes, " "))
	params.Set("state", state)
	return p.authURL + "?" + params.Encode()
}

func (p *microsoftProvider) Exchange(ctx context.Context, code string) (Credential, error) {
	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", p.redirectURI)
	form.Set("scope", strings.Join(msScopes, " "))
	return p.tokenRequest(ctx, "exchange", form)
}

func (p *microsoftProvider) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("scope", strings.Join(msScopes, " "))

	cred, err := p.tokenRequest(ctx, "refresh", form)
	if err != nil {
		return Credential{}, err
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// Revoke ends the user's sign-in sessions via Microsoft Graph, which
// invalidates issued refresh tokens.
func (p *microsoftProvider) Revoke(ctx context.Context, cred Credential) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, nil)
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("revoke sessions: status %d", resp.StatusCode)
	}
	return nil
}

// msTokenResponse is the token endpoint response shape, both success and
// error fields.
type msTokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *microsoftProvider) tokenRequest(ctx context.Context, op string, form url.Values) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body msTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, &TokenError{Op: op, StatusCode: resp.StatusCode, Description: "undecodable token response"}
	}

	if resp.StatusCode != http.StatusOK || body.Error != "" || body.AccessToken == "" {
		te := &TokenError{Op: op, StatusCode: resp.StatusCode, Code: body.Error, Description: body.ErrorDescription}
		if te.Code == "" && body.AccessToken == "" {
			te.Description = "response contained no access token"
		}
		return Credential{}, te
	}

	cred := Credential{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
	}
	if body.ExpiresIn > 0 {
		cred.Expiry = p.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return cred, nil
}
