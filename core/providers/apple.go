package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bandauth/core"
)

// ErrMissingAppleCredentials is returned when any of the three Apple signing
// secrets (key id, team id, private key) is absent or unusable. The exchange
// must not be attempted without a signable assertion.
var ErrMissingAppleCredentials = errors.New("apple sign-in credentials not configured")

const appleAudience = "https://appleid.apple.com"

// AssertionSigner mints the short-lived ES256 JWT Apple requires in place of
// a static client secret. Assertions are cheap to produce and expire within
// an hour, so they are freshly minted per attempt and never cached.
type AssertionSigner struct {
	secrets core.SecretProvider
}

func NewAssertionSigner(secrets core.SecretProvider) *AssertionSigner {
	return &AssertionSigner{secrets: secrets}
}

// Sign returns a client assertion for the given client id.
func (s *AssertionSigner) Sign(clientID string) (string, error) {
	keyID, ok := s.secrets.Secret(core.SecretAppleKeyID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingAppleCredentials, core.SecretAppleKeyID)
	}
	teamID, ok := s.secrets.Secret(core.SecretAppleTeamID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingAppleCredentials, core.SecretAppleTeamID)
	}
	keyPEM, ok := s.secrets.Secret(core.SecretApplePrivateKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingAppleCredentials, core.SecretApplePrivateKey)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(keyPEM))
	if err != nil {
		return "", fmt.Errorf("%w: private key is not a valid EC PEM", ErrMissingAppleCredentials)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": teamID,
		"sub": clientID,
		"aud": appleAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign apple assertion: %w", err)
	}
	return signed, nil
}

// decodeIDToken extracts the claims of an id_token without verifying its
// signature. The token arrives over TLS directly from Apple's token
// endpoint, which is the trust boundary here; local verification against
// Apple's published keys would tighten it further.
func decodeIDToken(idToken string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
