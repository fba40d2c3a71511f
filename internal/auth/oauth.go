package auth

import (
	"golang.org/x/oauth2"
)

// Scopes required for read-only health queries
var Scopes = []string{
	"health:read",
}

// Config holds the OAuth client credentials
type Config struct {
	BaseURL      string // health bridge base URL, e.g. "http://localhost:4170"
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8089/callback"
}

// NewOAuthConfig creates an oauth2.Config from our Config
func NewOAuthConfig(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.BaseURL + "/oauth/authorize",
			TokenURL: cfg.BaseURL + "/oauth/token",
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      Scopes,
	}
}

// AuthResult contains the token from successful auth
type AuthResult struct {
	Token *oauth2.Token
}
