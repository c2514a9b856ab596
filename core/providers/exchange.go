package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"bandauth/core"
)

// Doer is the outbound HTTP capability. *http.Client satisfies it; tests
// substitute recording fakes. Callers own timeouts, either on the client or
// via the request context; no lock is ever held across a call.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProviderError is a non-success response or malformed payload from an
// identity provider. It carries the HTTP status and raw body so operators
// can diagnose the provider side; callers surface it to users as a plain
// login failure.
type ProviderError struct {
	Provider core.Provider
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

const userAgent = "bandauth/1.0"

// Client performs the authorization-code exchange and user-info fetch. It is
// provider-agnostic except for Apple's assertion substitution and id_token
// post-processing. Client implements core.OAuthClient.
type Client struct {
	registry Registry
	secrets  core.SecretProvider
	signer   *AssertionSigner
	http     Doer
	logger   *slog.Logger
}

func NewClient(registry Registry, secrets core.SecretProvider, httpClient Doer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		registry: registry,
		secrets:  secrets,
		signer:   NewAssertionSigner(secrets),
		http:     httpClient,
		logger:   logger,
	}
}

// AuthorizeURL builds the redirect URL that starts the code flow.
func (c *Client) AuthorizeURL(provider core.Provider, redirectURI, state string) (string, error) {
	cfg, ok := c.registry.Config(provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedProvider, provider)
	}
	clientID, ok := c.secrets.Secret(core.ClientIDSecret(provider))
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrConfig, core.ClientIDSecret(provider))
	}
	return authorizeURL(cfg, provider, clientID, redirectURI, state), nil
}

// Exchange swaps an authorization code for the provider's tokens. The client
// secret is resolved per provider: a freshly signed assertion for Apple, a
// configured static secret for everyone else. Missing Apple credentials
// abort before any network call.
func (c *Client) Exchange(ctx context.Context, provider core.Provider, code, redirectURI string) (*core.ProviderToken, error) {
	cfg, ok := c.registry.Config(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedProvider, provider)
	}

	clientID, ok := c.secrets.Secret(core.ClientIDSecret(provider))
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrConfig, core.ClientIDSecret(provider))
	}

	var clientSecret string
	if provider == core.ProviderApple {
		assertion, err := c.signer.Sign(clientID)
		if err != nil {
			return nil, err
		}
		clientSecret = assertion
	} else {
		clientSecret, ok = c.secrets.Secret(core.ClientSecretSecret(provider))
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrConfig, core.ClientSecretSecret(provider))
		}
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("token exchange rejected", "provider", provider, "status", resp.StatusCode)
		return nil, &ProviderError{Provider: provider, Status: resp.StatusCode, Body: string(body)}
	}

	var token core.ProviderToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &ProviderError{Provider: provider, Status: resp.StatusCode, Body: string(body)}
	}

	// Apple exposes no user-info endpoint; the identity rides in the
	// id_token returned by the exchange itself.
	if provider == core.ProviderApple && token.IDToken != "" {
		claims, err := decodeIDToken(token.IDToken)
		if err != nil {
			return nil, &ProviderError{Provider: provider, Status: resp.StatusCode, Body: "unparseable id_token"}
		}
		token.UserInfo = claims
	}

	c.logger.Debug("token exchange complete", "provider", provider)
	return &token, nil
}

// FetchIdentity resolves the normalized identity for a completed exchange.
// Providers with a user-info endpoint are queried with the bearer token;
// Apple's identity was already attached during the exchange.
func (c *Client) FetchIdentity(ctx context.Context, provider core.Provider, token *core.ProviderToken) (*core.Identity, error) {
	cfg, ok := c.registry.Config(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedProvider, provider)
	}

	raw := token.UserInfo
	if raw == nil && cfg.UserInfoURL != "" {
		fetched, err := c.fetchUserInfo(ctx, provider, cfg, token.AccessToken)
		if err != nil {
			return nil, err
		}
		raw = fetched
	}

	ident, ok := Normalize(provider, raw)
	if !ok {
		return nil, &ProviderError{Provider: provider, Status: 0, Body: "no user info in provider response"}
	}
	return ident, nil
}

func (c *Client) fetchUserInfo(ctx context.Context, provider core.Provider, cfg ProviderConfig, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if cfg.SendUserAgent {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("user info rejected", "provider", provider, "status", resp.StatusCode)
		return nil, &ProviderError{Provider: provider, Status: resp.StatusCode, Body: string(body)}
	}

	// UseNumber keeps GitHub's numeric ids intact through normalization.
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ProviderError{Provider: provider, Status: resp.StatusCode, Body: "unparseable user info"}
	}
	return raw, nil
}
