package core

// Config carries the non-secret configuration of the identity subsystem.
// Secrets (client credentials, signing key) come through a SecretProvider.
type Config struct {
	// Environment gates the token-signing fallback: only "development"
	// permits running without a configured signing secret.
	Environment string `yaml:"environment"`

	// Token lifetimes in seconds. Zero means the default (1h access,
	// 30d refresh).
	AccessTokenDuration  int `yaml:"access_token_duration"`
	RefreshTokenDuration int `yaml:"refresh_token_duration"`
}

const (
	DefaultAccessTokenDuration  = 3600
	DefaultRefreshTokenDuration = 30 * 24 * 3600
)

func (c *Config) accessSeconds() int {
	if c.AccessTokenDuration > 0 {
		return c.AccessTokenDuration
	}
	return DefaultAccessTokenDuration
}

func (c *Config) refreshSeconds() int {
	if c.RefreshTokenDuration > 0 {
		return c.RefreshTokenDuration
	}
	return DefaultRefreshTokenDuration
}

func (c *Config) development() bool {
	return c.Environment == "development" || c.Environment == ""
}
