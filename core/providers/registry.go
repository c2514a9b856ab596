// Package providers implements the outbound half of federated login:
// provider metadata, the authorization-code exchange, Apple's client
// assertion, and normalization of provider profiles into one identity shape.
package providers

import (
	"net/url"

	"bandauth/core"
)

// ProviderConfig is the compiled-in metadata for one identity provider.
type ProviderConfig struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string // empty when the identity comes from the id_token (Apple)
	Scope       string

	// SendUserAgent marks providers that reject anonymous-looking clients
	// (GitHub returns 403 without a User-Agent header).
	SendUserAgent bool
}

// Registry maps provider tags to their endpoint metadata. It is a plain map
// so tests can build one pointing at local fake endpoints.
type Registry map[core.Provider]ProviderConfig

// DefaultRegistry returns the production endpoints for the supported
// providers.
func DefaultRegistry() Registry {
	return Registry{
		core.ProviderGoogle: {
			AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:    "https://oauth2.googleapis.com/token",
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			Scope:       "openid email profile",
		},
		core.ProviderGitHub: {
			AuthURL:       "https://github.com/login/oauth/authorize",
			TokenURL:      "https://github.com/login/oauth/access_token",
			UserInfoURL:   "https://api.github.com/user",
			Scope:         "read:user user:email",
			SendUserAgent: true,
		},
		core.ProviderApple: {
			AuthURL:  "https://appleid.apple.com/auth/authorize",
			TokenURL: "https://appleid.apple.com/auth/token",
			Scope:    "name email",
		},
	}
}

// Config returns the metadata for a provider, reporting absence for unknown
// tags.
func (r Registry) Config(p core.Provider) (ProviderConfig, bool) {
	cfg, ok := r[p]
	return cfg, ok
}

// authorizeURL builds the provider redirect URL for the authorization-code
// flow. Apple requires response_mode=form_post when requesting name/email
// scopes.
func authorizeURL(cfg ProviderConfig, p core.Provider, clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", cfg.Scope)
	if p == core.ProviderApple {
		q.Set("response_mode", "form_post")
	}
	if state != "" {
		q.Set("state", state)
	}
	return cfg.AuthURL + "?" + q.Encode()
}
