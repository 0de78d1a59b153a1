package google

import (
	"errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNotConfigured is returned when no OAuth client id or secret is set.
var ErrNotConfigured = errors.New("google OAuth client is not configured; set CLIENT_ID and CLIENT_SECRET")

// OOBRedirectURL is used when no redirect URL is configured. The user
// copies the code from the consent page.
const OOBRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

// OAuthConfig holds the OAuth client registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Validate reports ErrNotConfigured when the client id or secret is missing.
func (c OAuthConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrNotConfigured
	}
	return nil
}

// Config returns the oauth2 configuration for the Google endpoint.
func (c OAuthConfig) Config() *oauth2.Config {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = OOBRedirectURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       scopes,
	}
}
