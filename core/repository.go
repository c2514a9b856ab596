package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// UserRepository is the persistent user store, consumed as a capability.
// Implementations live in the storage package. CreateUser must enforce
// username and (oauth_provider, oauth_uid) uniqueness and report a violation
// as ErrAlreadyExists; that constraint, not the provisioner's availability
// check, is the final authority on username uniqueness.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	FindByProviderID(ctx context.Context, provider Provider, uid string) (*User, error)

	FindByEmail(ctx context.Context, email string) (*User, error)

	FindByUsername(ctx context.Context, username string) (*User, error)

	CreateUser(ctx context.Context, user *User) error

	UpdateUser(ctx context.Context, user *User) error
}
