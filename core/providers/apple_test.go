package providers_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandauth/core"
	"bandauth/core/providers"
)

func testAppleKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	pemText := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return key, string(pemText)
}

func appleSecrets(t *testing.T) (core.MapSecrets, *ecdsa.PrivateKey) {
	t.Helper()
	key, pemText := testAppleKey(t)
	return core.MapSecrets{
		core.SecretAppleKeyID:      "KEYID12345",
		core.SecretAppleTeamID:     "TEAM123456",
		core.SecretApplePrivateKey: pemText,
	}, key
}

func TestAssertionSigner_Sign(t *testing.T) {
	secrets, key := appleSecrets(t)
	signer := providers.NewAssertionSigner(secrets)

	assertion, err := signer.Sign("com.example.bandapp")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(assertion, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	assert.Equal(t, "KEYID12345", parsed.Header["kid"])
	assert.Equal(t, "ES256", parsed.Header["alg"])
	assert.Equal(t, "TEAM123456", claims["iss"])
	assert.Equal(t, "com.example.bandapp", claims["sub"])
	assert.Equal(t, "https://appleid.apple.com", claims["aud"])

	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	assert.Equal(t, int64(3600), exp-iat)
}

func TestAssertionSigner_MissingCredentials(t *testing.T) {
	full, _ := appleSecrets(t)

	for _, missing := range []string{
		core.SecretAppleKeyID,
		core.SecretAppleTeamID,
		core.SecretApplePrivateKey,
	} {
		secrets := core.MapSecrets{}
		for k, v := range full {
			if k != missing {
				secrets[k] = v
			}
		}

		signer := providers.NewAssertionSigner(secrets)
		_, err := signer.Sign("com.example.bandapp")
		assert.ErrorIs(t, err, providers.ErrMissingAppleCredentials, "missing %s", missing)
	}
}

func TestAssertionSigner_MalformedKey(t *testing.T) {
	secrets := core.MapSecrets{
		core.SecretAppleKeyID:      "KEYID12345",
		core.SecretAppleTeamID:     "TEAM123456",
		core.SecretApplePrivateKey: "not a pem at all",
	}

	signer := providers.NewAssertionSigner(secrets)
	_, err := signer.Sign("com.example.bandapp")
	assert.ErrorIs(t, err, providers.ErrMissingAppleCredentials)
}
