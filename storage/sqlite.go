package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bandauth/core"
)

//go:embed schema/sqlite/schema.sql
var sqliteSchema string

// SQLiteRepository is a core.UserRepository backed by a SQLite file. Its
// unique constraints on username and (oauth_provider, oauth_uid) are the
// final authority behind the provisioner's best-effort availability check.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) initSchema() error {
	_, err := r.db.Exec(sqliteSchema)
	return err
}

const userColumns = `id, username, email, password_digest, oauth_provider, oauth_uid, oauth_email, oauth_username, created_at, updated_at`

func (r *SQLiteRepository) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id.String()))
}

func (r *SQLiteRepository) FindByProviderID(ctx context.Context, provider core.Provider, uid string) (*core.User, error) {
	if uid == "" {
		return nil, core.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE oauth_provider = ? AND oauth_uid = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, string(provider), uid))
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	if email == "" {
		return nil, core.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (*core.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, user *core.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordDigest,
		user.OAuthProvider,
		user.OAuthUID,
		user.OAuthEmail,
		user.OAuthUsername,
		user.CreatedAt.Unix(),
		user.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, user *core.User) error {
	query := `
		UPDATE users
		SET username = ?, email = ?, password_digest = ?,
		    oauth_provider = ?, oauth_uid = ?, oauth_email = ?, oauth_username = ?,
		    updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordDigest,
		user.OAuthProvider,
		user.OAuthUID,
		user.OAuthEmail,
		user.OAuthUsername,
		user.UpdatedAt.Unix(),
		user.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAlreadyExists
		}
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanUser(row rowScanner) (*core.User, error) {
	var user core.User
	var idStr string
	var createdAt, updatedAt int64

	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordDigest,
		&user.OAuthProvider,
		&user.OAuthUID,
		&user.OAuthEmail,
		&user.OAuthUsername,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", idStr, err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
