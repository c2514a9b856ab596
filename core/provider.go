package core

import (
	"context"
	"strings"
)

// Provider identifies an external OAuth2/OIDC identity source.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
	ProviderApple  Provider = "apple"
)

// ProviderToken is the result of exchanging an authorization code with a
// provider's token endpoint. For Apple, UserInfo carries the claims decoded
// from the id_token, since Apple has no user-info endpoint.
type ProviderToken struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	IDToken      string         `json:"id_token"`
	ExpiresIn    int            `json:"expires_in"`
	TokenType    string         `json:"token_type"`
	UserInfo     map[string]any `json:"-"`
}

// Identity is the provider-agnostic shape of a user's external profile,
// produced fresh per login attempt and never persisted directly.
type Identity struct {
	ID       string
	Email    string
	Name     string
	Username string
	Picture  string
	Provider Provider
	Raw      map[string]any
}

// OAuthClient is the outbound side of a login attempt: building the
// authorization redirect, exchanging the code, and fetching the normalized
// identity. Implemented by core/providers; injected so tests can point it at
// fake endpoints.
type OAuthClient interface {
	AuthorizeURL(provider Provider, redirectURI, state string) (string, error)

	Exchange(ctx context.Context, provider Provider, code, redirectURI string) (*ProviderToken, error)

	// FetchIdentity turns a successful exchange into a normalized identity,
	// performing the bearer user-info fetch for providers that need one.
	FetchIdentity(ctx context.Context, provider Provider, token *ProviderToken) (*Identity, error)
}

// EmailLocalPart returns the part of an address before the '@', or the whole
// string when it does not look like an address.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
