package core

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an account in the band application. An account is either
// password-based, OAuth-based, or both (a password account that later linked
// an OAuth identity). At most one OAuth provider may be linked at a time;
// the Resolver enforces that at link time and the storage backends back it
// with a unique (oauth_provider, oauth_uid) constraint.
type User struct {
	ID             uuid.UUID
	Username       string // unique across all users
	Email          string
	PasswordDigest string // empty for OAuth-only accounts

	OAuthProvider string
	OAuthUID      string
	OAuthEmail    string
	OAuthUsername string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetPassword stores a bcrypt digest of the given password on the user.
func (u *User) SetPassword(password string) error {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	u.PasswordDigest = string(digest)
	return nil
}

// CheckPassword reports whether password matches the stored digest.
// Always false for OAuth-only accounts (no digest).
func (u *User) CheckPassword(password string) bool {
	if u.PasswordDigest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordDigest), []byte(password)) == nil
}

// Linked reports whether the user has an OAuth identity attached.
func (u *User) Linked() bool {
	return u.OAuthProvider != "" && u.OAuthUID != ""
}

// DeviceInfo identifies the device a token pair was issued to. Both fields
// are optional; when present they are copied into the token claims and
// carried through refresh.
type DeviceInfo struct {
	Type string `json:"device_type,omitempty"`
	ID   string `json:"device_id,omitempty"`
}
