package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/ydb-platform/ydb-go-sdk/v3"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/options"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/result"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/result/named"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/types"

	"bandauth/core"
)

// YDBRepository is a core.UserRepository backed by YDB. YDB has no unique
// secondary indexes, so username and identity uniqueness are enforced with a
// check-then-insert inside one serializable transaction.
type YDBRepository struct {
	db *ydb.Driver
}

// NewYDBRepository opens a driver for the DSN and ensures the users table
// exists. Credential options (e.g. Yandex Cloud service accounts) are passed
// through from the caller.
func NewYDBRepository(ctx context.Context, dsn string, opts ...ydb.Option) (*YDBRepository, error) {
	db, err := ydb.Open(ctx, dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open ydb: %w", err)
	}

	repo := &YDBRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

func (r *YDBRepository) Close(ctx context.Context) error {
	return r.db.Close(ctx)
}

func (r *YDBRepository) initSchema(ctx context.Context) error {
	return r.db.Table().Do(ctx, func(ctx context.Context, s table.Session) error {
		return s.CreateTable(ctx, path.Join(r.db.Name(), "users"),
			options.WithColumn("id", types.Optional(types.TypeText)),
			options.WithColumn("username", types.Optional(types.TypeText)),
			options.WithColumn("email", types.Optional(types.TypeText)),
			options.WithColumn("password_digest", types.Optional(types.TypeText)),
			options.WithColumn("oauth_provider", types.Optional(types.TypeText)),
			options.WithColumn("oauth_uid", types.Optional(types.TypeText)),
			options.WithColumn("oauth_email", types.Optional(types.TypeText)),
			options.WithColumn("oauth_username", types.Optional(types.TypeText)),
			options.WithColumn("created_at", types.Optional(types.TypeInt64)),
			options.WithColumn("updated_at", types.Optional(types.TypeInt64)),
			options.WithPrimaryKeyColumn("id"),
		)
	})
}

var readTx = table.TxControl(table.BeginTx(table.WithOnlineReadOnly()), table.CommitTx())

func (r *YDBRepository) query(body string) string {
	return fmt.Sprintf("PRAGMA TablePathPrefix(\"%s\");\n", r.db.Name()) + body
}

const selectColumns = `id, username, email, password_digest, oauth_provider, oauth_uid, oauth_email, oauth_username, created_at, updated_at`

func (r *YDBRepository) findOne(ctx context.Context, queryBody string, params *table.QueryParameters) (*core.User, error) {
	var user *core.User
	err := r.db.Table().Do(ctx, func(ctx context.Context, s table.Session) error {
		_, res, err := s.Execute(ctx, readTx, r.query(queryBody), params)
		if err != nil {
			return err
		}
		defer res.Close()

		u, err := scanYDBUser(ctx, res)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanYDBUser(ctx context.Context, res result.Result) (*core.User, error) {
	if !res.NextResultSet(ctx) || !res.NextRow() {
		return nil, core.ErrNotFound
	}

	var (
		user                 core.User
		idStr                string
		createdAt, updatedAt int64
	)
	err := res.ScanNamed(
		named.OptionalWithDefault("id", &idStr),
		named.OptionalWithDefault("username", &user.Username),
		named.OptionalWithDefault("email", &user.Email),
		named.OptionalWithDefault("password_digest", &user.PasswordDigest),
		named.OptionalWithDefault("oauth_provider", &user.OAuthProvider),
		named.OptionalWithDefault("oauth_uid", &user.OAuthUID),
		named.OptionalWithDefault("oauth_email", &user.OAuthEmail),
		named.OptionalWithDefault("oauth_username", &user.OAuthUsername),
		named.OptionalWithDefault("created_at", &createdAt),
		named.OptionalWithDefault("updated_at", &updatedAt),
	)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
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

func (r *YDBRepository) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	query := `
		DECLARE $id AS Text;
		SELECT ` + selectColumns + ` FROM users WHERE id = $id;
	`
	return r.findOne(ctx, query, table.NewQueryParameters(
		table.ValueParam("$id", types.TextValue(id.String())),
	))
}

func (r *YDBRepository) FindByProviderID(ctx context.Context, provider core.Provider, uid string) (*core.User, error) {
	if uid == "" {
		return nil, core.ErrNotFound
	}
	query := `
		DECLARE $provider AS Text;
		DECLARE $uid AS Text;
		SELECT ` + selectColumns + ` FROM users
		WHERE oauth_provider = $provider AND oauth_uid = $uid
		LIMIT 1;
	`
	return r.findOne(ctx, query, table.NewQueryParameters(
		table.ValueParam("$provider", types.TextValue(string(provider))),
		table.ValueParam("$uid", types.TextValue(uid)),
	))
}

func (r *YDBRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	if email == "" {
		return nil, core.ErrNotFound
	}
	query := `
		DECLARE $email AS Text;
		SELECT ` + selectColumns + ` FROM users WHERE email = $email LIMIT 1;
	`
	return r.findOne(ctx, query, table.NewQueryParameters(
		table.ValueParam("$email", types.TextValue(email)),
	))
}

func (r *YDBRepository) FindByUsername(ctx context.Context, username string) (*core.User, error) {
	query := `
		DECLARE $username AS Text;
		SELECT ` + selectColumns + ` FROM users WHERE username = $username LIMIT 1;
	`
	return r.findOne(ctx, query, table.NewQueryParameters(
		table.ValueParam("$username", types.TextValue(username)),
	))
}

func (r *YDBRepository) CreateUser(ctx context.Context, user *core.User) error {
	checkQuery := `
		DECLARE $username AS Text;
		DECLARE $provider AS Text;
		DECLARE $uid AS Text;
		SELECT id FROM users
		WHERE username = $username
		   OR (oauth_uid != "" AND oauth_provider = $provider AND oauth_uid = $uid)
		LIMIT 1;
	`
	insertQuery := `
		DECLARE $id AS Text;
		DECLARE $username AS Text;
		DECLARE $email AS Text;
		DECLARE $password_digest AS Text;
		DECLARE $provider AS Text;
		DECLARE $uid AS Text;
		DECLARE $oauth_email AS Text;
		DECLARE $oauth_username AS Text;
		DECLARE $created_at AS Int64;
		DECLARE $updated_at AS Int64;
		INSERT INTO users (` + selectColumns + `)
		VALUES ($id, $username, $email, $password_digest, $provider, $uid, $oauth_email, $oauth_username, $created_at, $updated_at);
	`
	return r.db.Table().DoTx(ctx, func(ctx context.Context, tx table.TransactionActor) error {
		res, err := tx.Execute(ctx, r.query(checkQuery), table.NewQueryParameters(
			table.ValueParam("$username", types.TextValue(user.Username)),
			table.ValueParam("$provider", types.TextValue(user.OAuthProvider)),
			table.ValueParam("$uid", types.TextValue(user.OAuthUID)),
		))
		if err != nil {
			return err
		}
		taken := res.NextResultSet(ctx) && res.NextRow()
		res.Close()
		if taken {
			return core.ErrAlreadyExists
		}

		res, err = tx.Execute(ctx, r.query(insertQuery), table.NewQueryParameters(
			table.ValueParam("$id", types.TextValue(user.ID.String())),
			table.ValueParam("$username", types.TextValue(user.Username)),
			table.ValueParam("$email", types.TextValue(user.Email)),
			table.ValueParam("$password_digest", types.TextValue(user.PasswordDigest)),
			table.ValueParam("$provider", types.TextValue(user.OAuthProvider)),
			table.ValueParam("$uid", types.TextValue(user.OAuthUID)),
			table.ValueParam("$oauth_email", types.TextValue(user.OAuthEmail)),
			table.ValueParam("$oauth_username", types.TextValue(user.OAuthUsername)),
			table.ValueParam("$created_at", types.Int64Value(user.CreatedAt.Unix())),
			table.ValueParam("$updated_at", types.Int64Value(user.UpdatedAt.Unix())),
		))
		if err != nil {
			return err
		}
		return res.Close()
	})
}

func (r *YDBRepository) UpdateUser(ctx context.Context, user *core.User) error {
	query := `
		DECLARE $id AS Text;
		DECLARE $username AS Text;
		DECLARE $email AS Text;
		DECLARE $password_digest AS Text;
		DECLARE $provider AS Text;
		DECLARE $uid AS Text;
		DECLARE $oauth_email AS Text;
		DECLARE $oauth_username AS Text;
		DECLARE $updated_at AS Int64;
		UPDATE users
		SET username = $username, email = $email, password_digest = $password_digest,
		    oauth_provider = $provider, oauth_uid = $uid,
		    oauth_email = $oauth_email, oauth_username = $oauth_username,
		    updated_at = $updated_at
		WHERE id = $id;
	`
	return r.db.Table().DoTx(ctx, func(ctx context.Context, tx table.TransactionActor) error {
		res, err := tx.Execute(ctx, r.query(query), table.NewQueryParameters(
			table.ValueParam("$id", types.TextValue(user.ID.String())),
			table.ValueParam("$username", types.TextValue(user.Username)),
			table.ValueParam("$email", types.TextValue(user.Email)),
			table.ValueParam("$password_digest", types.TextValue(user.PasswordDigest)),
			table.ValueParam("$provider", types.TextValue(user.OAuthProvider)),
			table.ValueParam("$uid", types.TextValue(user.OAuthUID)),
			table.ValueParam("$oauth_email", types.TextValue(user.OAuthEmail)),
			table.ValueParam("$oauth_username", types.TextValue(user.OAuthUsername)),
			table.ValueParam("$updated_at", types.Int64Value(user.UpdatedAt.Unix())),
		))
		if err != nil {
			return err
		}
		return res.Close()
	})
}
