package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// LoginRequest carries one authentication attempt through the full flow.
type LoginRequest struct {
	Provider    Provider
	Code        string
	RedirectURI string

	// SignupCode, when present, authorizes account creation for identities
	// that resolve to no user. Without it an unknown identity fails with
	// ErrNoAccount.
	SignupCode string

	Device DeviceInfo
}

// LoginResponse is handed back to the HTTP-layer caller after a successful
// login: the first-party token pair plus the authenticated user.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
}

// AuthService orchestrates a login attempt end to end: code exchange,
// identity normalization, resolution/linking, optional provisioning, and
// first-party token issuance. Each attempt is an independent synchronous
// call with no shared mutable state.
type AuthService struct {
	oauth       OAuthClient
	resolver    *Resolver
	provisioner *Provisioner
	tokens      *TokenService
	logger      *slog.Logger
}

func NewAuthService(oauth OAuthClient, resolver *Resolver, provisioner *Provisioner, tokens *TokenService, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		oauth:       oauth,
		resolver:    resolver,
		provisioner: provisioner,
		tokens:      tokens,
		logger:      logger,
	}
}

// AuthorizeURL builds the provider redirect that starts the flow.
func (s *AuthService) AuthorizeURL(provider Provider, redirectURI, state string) (string, error) {
	return s.oauth.AuthorizeURL(provider, redirectURI, state)
}

// Login authenticates a human signup/login: unknown identities are only
// provisioned when the request carries a valid signup code.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req, func(ident *Identity) (*User, error) {
		if req.SignupCode == "" {
			return nil, ErrNoAccount
		}
		return s.provisioner.CreateWithValidation(ctx, req.Provider, ident, req.SignupCode)
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user, req.Device)
}

// LoginTrusted is the legacy path with no signup gate: unknown identities
// are created unconditionally. Reserved for callers that established trust
// by other means.
func (s *AuthService) LoginTrusted(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req, func(ident *Identity) (*User, error) {
		return s.provisioner.FindOrCreate(ctx, req.Provider, ident)
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user, req.Device)
}

// authenticate runs exchange → identity → resolve, deferring to onMissing
// when the identity has no account.
func (s *AuthService) authenticate(ctx context.Context, req LoginRequest, onMissing func(*Identity) (*User, error)) (*User, error) {
	token, err := s.oauth.Exchange(ctx, req.Provider, req.Code, req.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	ident, err := s.oauth.FetchIdentity(ctx, req.Provider, token)
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}

	user, err := s.resolver.Resolve(ctx, req.Provider, ident)
	if errors.Is(err, ErrNoAccount) {
		return onMissing(ident)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *User, device DeviceInfo) (*LoginResponse, error) {
	pair, err := s.tokens.GenerateTokens(user, device)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login complete", "user_id", user.ID)
	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    pair.TokenType,
		UserID:       user.ID.String(),
		Username:     user.Username,
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AccessGrant, bool) {
	return s.tokens.RefreshAccessToken(ctx, refreshToken)
}

// Authenticate is the application's authentication entry point for bearer
// requests: it decodes an access token and reports the claims, failing
// closed.
func (s *AuthService) Authenticate(token string) (*Claims, bool) {
	return s.tokens.DecodeAccess(token)
}
