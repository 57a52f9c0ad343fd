package auth

import "time"

// Credential is the access/refresh token pair and metadata used to
// authenticate a mail session.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// Expired reports whether the credential is known to be past its expiry.
// A credential without an expiry is treated as usable; the provider rejects
// it if it is not, and the next run refreshes.
func (c Credential) Expired() bool {
	if c.Expiry.IsZero() {
		return false
	}
	return time.Now().After(c.Expiry)
}
