package domain

import "time"

// AuthMethod identifies how bearer tokens are obtained.
type AuthMethod string

// Available auth methods.
const (
	// AuthMethodClientCredentials exchanges an app id and secret for a token per resource.
	AuthMethodClientCredentials AuthMethod = "client_credentials"

	// AuthMethodStatic uses a pre-issued token from configuration.
	AuthMethodStatic AuthMethod = "static"

	// AuthMethodNone sends no Authorization header.
	AuthMethodNone AuthMethod = "none"
)

// IsValid returns true if the auth method is recognised.
func (m AuthMethod) IsValid() bool {
	switch m {
	case AuthMethodClientCredentials, AuthMethodStatic, AuthMethodNone:
		return true
	default:
		return false
	}
}

// OAuthToken represents an issued access token.
type OAuthToken struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`
}

// IsExpired returns true if the token has expired.
func (t *OAuthToken) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}
