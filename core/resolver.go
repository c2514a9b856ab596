package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Resolver decides what an incoming normalized identity maps to: a returning
// linked user, an email-matched account to link, or no account at all.
type Resolver struct {
	repo   UserRepository
	logger *slog.Logger
}

func NewResolver(repo UserRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve runs the lookup in a fixed order: exact (provider, uid) match
// first, then email match. The ordering matters: a returning user whose
// provider-reported email changed must hit the uid fast path, not get
// re-linked to a stale email-matched account.
//
// Email matches link the identity onto the found user, enforcing the
// single-provider-per-account invariant: a user already linked to a
// different provider yields ErrProviderConflict naming that provider.
// No match at all yields ErrNoAccount; provisioning is the caller's call.
func (r *Resolver) Resolve(ctx context.Context, provider Provider, ident *Identity) (*User, error) {
	user, err := r.repo.FindByProviderID(ctx, provider, ident.ID)
	if err == nil {
		r.logger.Debug("identity resolved", "provider", provider, "match", "uid")
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find by provider id: %w", err)
	}

	if ident.Email != "" {
		user, err = r.repo.FindByEmail(ctx, ident.Email)
		switch {
		case err == nil:
			return r.link(ctx, user, provider, ident)
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("find by email: %w", err)
		}
	}

	return nil, ErrNoAccount
}

// link attaches the OAuth identity to an email-matched user. Two concurrent
// logins with different providers can both pass the conflict check before
// either write commits; the store keeps whichever write lands last, which is
// an accepted narrow race for per-account login traffic.
func (r *Resolver) link(ctx context.Context, user *User, provider Provider, ident *Identity) (*User, error) {
	if user.OAuthProvider != "" && user.OAuthProvider != string(provider) {
		return nil, fmt.Errorf("%w: this account is already linked to %s", ErrProviderConflict, user.OAuthProvider)
	}

	user.OAuthProvider = string(provider)
	user.OAuthUID = ident.ID
	user.OAuthEmail = ident.Email
	user.OAuthUsername = ident.Username
	user.UpdatedAt = time.Now()

	if err := r.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("link identity: %w", err)
	}
	r.logger.Info("identity linked", "provider", provider, "user_id", user.ID)
	return user, nil
}
