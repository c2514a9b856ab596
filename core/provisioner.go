package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// usernameAttempts bounds the availability scan; past this the base is
// considered pathological and creation fails with ErrValidation.
const usernameAttempts = 100

var usernameInvalid = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Provisioner creates users for OAuth identities that resolved to no
// account. Creation through CreateWithValidation is gated by a shared
// account-creation code; FindOrCreate skips the gate and is reserved for
// callers that established trust by other means.
type Provisioner struct {
	repo     UserRepository
	secrets  SecretProvider
	resolver *Resolver
	logger   *slog.Logger
}

func NewProvisioner(repo UserRepository, secrets SecretProvider, resolver *Resolver, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{repo: repo, secrets: secrets, resolver: resolver, logger: logger}
}

// CreateWithValidation creates a user after checking the submitted
// account-creation code. An unconfigured code rejects everything: signup
// stays closed rather than open when the secret is missing.
func (p *Provisioner) CreateWithValidation(ctx context.Context, provider Provider, ident *Identity, submittedCode string) (*User, error) {
	want, ok := p.secrets.Secret(SecretAccountCreation)
	if !ok || subtle.ConstantTimeCompare([]byte(submittedCode), []byte(want)) != 1 {
		return nil, ErrInvalidCreationCode
	}
	return p.createUser(ctx, provider, ident)
}

// FindOrCreate resolves the identity and creates a user when nothing
// matched, with no code check.
func (p *Provisioner) FindOrCreate(ctx context.Context, provider Provider, ident *Identity) (*User, error) {
	user, err := p.resolver.Resolve(ctx, provider, ident)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNoAccount) {
		return nil, err
	}
	return p.createUser(ctx, provider, ident)
}

// createUser builds a user bound to the OAuth identity, with a
// collision-safe username. The availability scan is best-effort: two
// concurrent signups can race past it, so a uniqueness violation from the
// store is retried with a freshly scanned suffix before giving up.
func (p *Provisioner) createUser(ctx context.Context, provider Provider, ident *Identity) (*User, error) {
	base := SanitizeUsername(usernameBase(ident))

	for attempt := 0; attempt < 2; attempt++ {
		username, err := p.freeUsername(ctx, base)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		user := &User{
			ID:            uuid.New(),
			Username:      username,
			Email:         ident.Email,
			OAuthProvider: string(provider),
			OAuthUID:      ident.ID,
			OAuthEmail:    ident.Email,
			OAuthUsername: ident.Username,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = p.repo.CreateUser(ctx, user)
		if err == nil {
			p.logger.Info("user created", "provider", provider, "user_id", user.ID, "username", username)
			return user, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// Lost the race to another signup with the same base; rescan.
	}

	return nil, fmt.Errorf("%w: could not allocate a unique username for %q", ErrValidation, base)
}

// freeUsername scans base, base_1, base_2, ... until the repository reports
// a candidate free.
func (p *Provisioner) freeUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 1; n <= usernameAttempts; n++ {
		_, err := p.repo.FindByUsername(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
	return "", fmt.Errorf("%w: exhausted username candidates for %q", ErrValidation, base)
}

// usernameBase picks the raw material for a username: display name, then
// provider username, then the email local part, then a literal fallback.
func usernameBase(ident *Identity) string {
	switch {
	case ident.Name != "":
		return ident.Name
	case ident.Username != "":
		return ident.Username
	case ident.Email != "":
		return EmailLocalPart(ident.Email)
	default:
		return "user"
	}
}

// SanitizeUsername lower-cases the base and replaces everything outside
// [a-zA-Z0-9_] with underscores; an empty result falls back to "user".
func SanitizeUsername(base string) string {
	s := usernameInvalid.ReplaceAllString(base, "_")
	s = strings.ToLower(s)
	if s == "" {
		return "user"
	}
	return s
}
