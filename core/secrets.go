package core

import (
	"os"
	"strings"
)

// Well-known secret names consumed by this subsystem. Per-provider client
// credentials are derived from the provider tag, e.g. GOOGLE_CLIENT_ID.
const (
	SecretTokenSigning    = "TOKEN_SIGNING_SECRET"
	SecretAccountCreation = "ACCOUNT_CREATION_CODE"
	SecretAppleKeyID      = "APPLE_KEY_ID"
	SecretAppleTeamID     = "APPLE_TEAM_ID"
	SecretApplePrivateKey = "APPLE_PRIVATE_KEY"
)

// SecretProvider supplies named string secrets. Implementations must be safe
// for concurrent use. Absence is reported, never an error: a missing secret
// is an expected configuration state.
type SecretProvider interface {
	Secret(name string) (string, bool)
}

// ClientIDSecret returns the secret name holding a provider's client id.
func ClientIDSecret(p Provider) string {
	return strings.ToUpper(string(p)) + "_CLIENT_ID"
}

// ClientSecretSecret returns the secret name holding a provider's static
// client secret. Unused for Apple, whose client secret is a signed assertion.
func ClientSecretSecret(p Provider) string {
	return strings.ToUpper(string(p)) + "_CLIENT_SECRET"
}

// EnvSecrets reads secrets from the process environment.
type EnvSecrets struct{}

func (EnvSecrets) Secret(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MapSecrets is a fixed in-memory secret set, used by tests and by the
// standalone binary for secrets loaded from the config file.
type MapSecrets map[string]string

func (m MapSecrets) Secret(name string) (string, bool) {
	v, ok := m[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// LayeredSecrets consults providers in order and returns the first hit.
type LayeredSecrets []SecretProvider

func (l LayeredSecrets) Secret(name string) (string, bool) {
	for _, p := range l {
		if v, ok := p.Secret(name); ok {
			return v, true
		}
	}
	return "", false
}
