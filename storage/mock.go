package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bandauth/core"
)

// MockRepository is an in-memory core.UserRepository for tests and the
// standalone binary's mock mode. It enforces the same uniqueness rules as
// the real backends so the provisioner's race handling can be exercised.
type MockRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*core.User

	// FailCreates makes the next N CreateUser calls fail with
	// ErrAlreadyExists, simulating a lost check-then-create race.
	FailCreates int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{users: make(map[uuid.UUID]*core.User)}
}

// Seed inserts fixture users directly, bypassing uniqueness checks.
func (r *MockRepository) Seed(users ...*core.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
}

func (r *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MockRepository) FindByProviderID(ctx context.Context, provider core.Provider, uid string) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.OAuthProvider == string(provider) && u.OAuthUID == uid && uid != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *MockRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email && email != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *MockRepository) FindByUsername(ctx context.Context, username string) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *MockRepository) CreateUser(ctx context.Context, user *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreates > 0 {
		r.FailCreates--
		return core.ErrAlreadyExists
	}

	for _, u := range r.users {
		if u.Username == user.Username {
			return core.ErrAlreadyExists
		}
		if user.OAuthUID != "" && u.OAuthProvider == user.OAuthProvider && u.OAuthUID == user.OAuthUID {
			return core.ErrAlreadyExists
		}
	}

	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *MockRepository) UpdateUser(ctx context.Context, user *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return core.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// Fixture users shared by tests across packages.

// PasswordUser is a password-based account with no linked OAuth identity.
func PasswordUser() *core.User {
	u := &core.User{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Username:  "alice",
		Email:     "alice@example.com",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_ = u.SetPassword("correct horse battery staple")
	return u
}

// LinkedGoogleUser is already bound to a Google identity.
func LinkedGoogleUser() *core.User {
	return &core.User{
		ID:            uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Username:      "bob",
		Email:         "bob@example.com",
		OAuthProvider: "google",
		OAuthUID:      "google_uid_bob",
		OAuthEmail:    "bob@example.com",
		OAuthUsername: "bob",
		CreatedAt:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}
