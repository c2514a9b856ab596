package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// devSigningSecret protects tokens only in development, where running
// without a configured secret is permitted.
const devSigningSecret = "bandauth-development-signing-secret-do-not-deploy"

// Claims is the wire surface of a first-party bearer token. The JSON names
// (user_id, type, iat, exp, jti, device_type, device_id) are a compatibility
// surface for existing API clients.
type Claims struct {
	UserID     string `json:"user_id"`
	Type       string `json:"type"`
	DeviceType string `json:"device_type,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a full login: both tokens plus the access
// token's lifetime.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AccessGrant is the result of a refresh: a new access token only. The
// refresh token is not rotated; with no revocation store, rotation would
// only invalidate the client's copy without invalidating the old one.
type AccessGrant struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenService issues, decodes, and refreshes the self-signed bearer tokens
// the rest of the application authenticates with. Tokens are stateless and
// HS256-signed: validity is entirely signature + expiry + type tag, and
// there is no revocation list. All decode paths fail closed.
type TokenService struct {
	secret     []byte
	repo       UserRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewTokenService resolves the signing secret. Outside development the
// secret is mandatory and must be at least 32 characters; a weak or missing
// secret fails construction rather than silently protecting production
// tokens with a default.
func NewTokenService(secrets SecretProvider, repo UserRepository, cfg *Config, logger *slog.Logger) (*TokenService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	secret, ok := secrets.Secret(SecretTokenSigning)
	if !ok {
		if !cfg.development() {
			return nil, fmt.Errorf("%w: %s must be set outside development", ErrConfig, SecretTokenSigning)
		}
		secret = devSigningSecret
	} else if !cfg.development() && len(secret) < 32 {
		return nil, fmt.Errorf("%w: %s must be at least 32 characters", ErrConfig, SecretTokenSigning)
	}

	return &TokenService{
		secret:     []byte(secret),
		repo:       repo,
		accessTTL:  time.Duration(cfg.accessSeconds()) * time.Second,
		refreshTTL: time.Duration(cfg.refreshSeconds()) * time.Second,
		logger:     logger,
	}, nil
}

// GenerateTokens mints an independent access/refresh pair for the user, each
// with its own type tag and fresh jti.
func (s *TokenService) GenerateTokens(user *User, device DeviceInfo) (*TokenPair, error) {
	access, err := s.mint(user.ID, TokenTypeAccess, s.accessTTL, device)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(user.ID, TokenTypeRefresh, s.refreshTTL, device)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (s *TokenService) mint(userID uuid.UUID, tokenType string, ttl time.Duration, device DeviceInfo) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID.String(),
		Type:       tokenType,
		DeviceType: device.Type,
		DeviceID:   device.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Decode verifies signature and expiry and requires the user_id, type, and
// jti claims. Any failure resolves to absence: callers treat absent as
// unauthenticated, uniformly.
func (s *TokenService) Decode(token string) (*Claims, bool) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" || claims.Type == "" || claims.ID == "" {
		return nil, false
	}
	return claims, true
}

// DecodeAccess decodes a token and requires the access type tag. A refresh
// token, however validly signed, is absent here: a long-lived refresh token
// must never be replayable as an access token.
func (s *TokenService) DecodeAccess(token string) (*Claims, bool) {
	return s.decodeTyped(token, TokenTypeAccess)
}

// DecodeRefresh decodes a token and requires the refresh type tag.
func (s *TokenService) DecodeRefresh(token string) (*Claims, bool) {
	return s.decodeTyped(token, TokenTypeRefresh)
}

func (s *TokenService) decodeTyped(token, tokenType string) (*Claims, bool) {
	claims, ok := s.Decode(token)
	if !ok || claims.Type != tokenType {
		return nil, false
	}
	return claims, true
}

// RefreshAccessToken mints a new access token for a valid refresh token,
// carrying the device info through. Absent when the token is invalid, of the
// wrong type, or the user no longer exists.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (*AccessGrant, bool) {
	claims, ok := s.DecodeRefresh(refreshToken)
	if !ok {
		return nil, false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, false
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, false
	}

	access, err := s.mint(user.ID, TokenTypeAccess, s.accessTTL, DeviceInfo{Type: claims.DeviceType, ID: claims.DeviceID})
	if err != nil {
		s.logger.Error("access token mint failed", "user_id", user.ID)
		return nil, false
	}

	return &AccessGrant{
		AccessToken: access,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		TokenType:   "Bearer",
	}, true
}
