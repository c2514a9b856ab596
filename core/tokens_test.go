package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandauth/core"
	"bandauth/storage"
)

const testSigningSecret = "unit-test-signing-secret-0123456789abcdef"

func newTokenService(t *testing.T, repo core.UserRepository) *core.TokenService {
	t.Helper()
	svc, err := core.NewTokenService(
		core.MapSecrets{core.SecretTokenSigning: testSigningSecret},
		repo,
		&core.Config{Environment: "production"},
		nil,
	)
	require.NoError(t, err)
	return svc
}

func TestGenerateTokens_RoundTrip(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	repo.Seed(user)
	svc := newTokenService(t, repo)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{Type: "ios", ID: "device-42"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, core.DefaultAccessTokenDuration, pair.ExpiresIn)

	access, ok := svc.Decode(pair.AccessToken)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), access.UserID)
	assert.Equal(t, core.TokenTypeAccess, access.Type)
	assert.Equal(t, "ios", access.DeviceType)
	assert.Equal(t, "device-42", access.DeviceID)
	assert.NotEmpty(t, access.ID)

	refresh, ok := svc.Decode(pair.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, core.TokenTypeRefresh, refresh.Type)
	assert.NotEqual(t, access.ID, refresh.ID, "each token carries its own jti")
}

func TestDecode_FailsClosed(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	repo.Seed(user)
	svc := newTokenService(t, repo)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{})
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, ok := svc.Decode("not.a.token")
		assert.False(t, ok)
	})

	t.Run("altered signature", func(t *testing.T) {
		tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
		_, ok := svc.Decode(tampered)
		assert.False(t, ok)
	})

	t.Run("altered payload", func(t *testing.T) {
		parts := strings.Split(pair.AccessToken, ".")
		require.Len(t, parts, 3)
		parts[1] = parts[1][:len(parts[1])-2] + "qq"
		_, ok := svc.Decode(strings.Join(parts, "."))
		assert.False(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := core.NewTokenService(
			core.MapSecrets{core.SecretTokenSigning: "a-completely-different-32char-secret!!"},
			repo,
			&core.Config{Environment: "production"},
			nil,
		)
		require.NoError(t, err)
		_, ok := other.Decode(pair.AccessToken)
		assert.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		expired := signTestToken(t, jwt.MapClaims{
			"user_id": user.ID.String(),
			"type":    core.TokenTypeAccess,
			"jti":     uuid.NewString(),
			"iat":     time.Now().Add(-2 * time.Hour).Unix(),
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})
		_, ok := svc.Decode(expired)
		assert.False(t, ok)
	})

	t.Run("missing required claims", func(t *testing.T) {
		for _, drop := range []string{"user_id", "type", "jti"} {
			claims := jwt.MapClaims{
				"user_id": user.ID.String(),
				"type":    core.TokenTypeAccess,
				"jti":     uuid.NewString(),
				"exp":     time.Now().Add(time.Hour).Unix(),
			}
			delete(claims, drop)
			_, ok := svc.Decode(signTestToken(t, claims))
			assert.False(t, ok, "token without %s must not decode", drop)
		}
	})
}

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningSecret))
	require.NoError(t, err)
	return signed
}

func TestDecodeTyped_RejectsMismatchedType(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	repo.Seed(user)
	svc := newTokenService(t, repo)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{})
	require.NoError(t, err)

	// Both decode fine as generic tokens.
	_, ok := svc.Decode(pair.AccessToken)
	assert.True(t, ok)
	_, ok = svc.Decode(pair.RefreshToken)
	assert.True(t, ok)

	// A refresh token must never pass as an access token, and vice versa.
	_, ok = svc.DecodeAccess(pair.RefreshToken)
	assert.False(t, ok)
	_, ok = svc.DecodeRefresh(pair.AccessToken)
	assert.False(t, ok)

	_, ok = svc.DecodeAccess(pair.AccessToken)
	assert.True(t, ok)
	_, ok = svc.DecodeRefresh(pair.RefreshToken)
	assert.True(t, ok)
}

func TestRefreshAccessToken(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	repo.Seed(user)
	svc := newTokenService(t, repo)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{Type: "android", ID: "pixel-9"})
	require.NoError(t, err)

	grant, ok := svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, "Bearer", grant.TokenType)

	claims, ok := svc.DecodeAccess(grant.AccessToken)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "android", claims.DeviceType)
	assert.Equal(t, "pixel-9", claims.DeviceID)
}

func TestRefreshAccessToken_RejectsAccessToken(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	repo.Seed(user)
	svc := newTokenService(t, repo)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{})
	require.NoError(t, err)

	_, ok := svc.RefreshAccessToken(context.Background(), pair.AccessToken)
	assert.False(t, ok)
}

func TestRefreshAccessToken_UserGone(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	// Not seeded: the user does not exist anymore.
	svc := newTokenService(t, repo)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{})
	require.NoError(t, err)

	_, ok := svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	assert.False(t, ok)
}

func TestNewTokenService_SecretPolicy(t *testing.T) {
	repo := storage.NewMockRepository()

	t.Run("production requires a secret", func(t *testing.T) {
		_, err := core.NewTokenService(core.MapSecrets{}, repo, &core.Config{Environment: "production"}, nil)
		assert.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("production rejects short secrets", func(t *testing.T) {
		secrets := core.MapSecrets{core.SecretTokenSigning: "too-short"}
		_, err := core.NewTokenService(secrets, repo, &core.Config{Environment: "production"}, nil)
		assert.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("development falls back", func(t *testing.T) {
		svc, err := core.NewTokenService(core.MapSecrets{}, repo, &core.Config{Environment: "development"}, nil)
		require.NoError(t, err)

		user := storage.PasswordUser()
		pair, err := svc.GenerateTokens(user, core.DeviceInfo{})
		require.NoError(t, err)
		_, ok := svc.Decode(pair.AccessToken)
		assert.True(t, ok)
	})
}

func TestTokenLifetimeOverrides(t *testing.T) {
	repo := storage.NewMockRepository()
	user := storage.PasswordUser()
	repo.Seed(user)

	svc, err := core.NewTokenService(
		core.MapSecrets{core.SecretTokenSigning: testSigningSecret},
		repo,
		&core.Config{Environment: "production", AccessTokenDuration: 120, RefreshTokenDuration: 600},
		nil,
	)
	require.NoError(t, err)

	pair, err := svc.GenerateTokens(user, core.DeviceInfo{})
	require.NoError(t, err)
	assert.Equal(t, 120, pair.ExpiresIn)

	claims, ok := svc.DecodeRefresh(pair.RefreshToken)
	require.True(t, ok)
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.InDelta(t, 600, ttl.Seconds(), 1)
}
