package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/shipnote/internal/model"
)

// ErrUserNotFound は削除対象のユーザーが存在しない場合のエラー。
var ErrUserNotFound = errors.New("user not found")

// PostgresUserRepo はusersテーブルを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case notFound(err):
		return nil, nil
	case err != nil:
		return nil, &model.StorageError{Op: "find user", Err: err}
	}
	return &u, nil
}

// CreateWithIdentity は初回ログイン時にユーザーとGoogleのidentityを1トランザクションで作成する。
// どちらかの挿入に失敗した場合はどちらも残らない。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StorageError{Op: "begin user transaction", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		return &model.StorageError{Op: "insert user", Err: err}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	); err != nil {
		return &model.StorageError{Op: "insert identity", Err: err}
	}

	if err = tx.Commit(); err != nil {
		return &model.StorageError{Op: "commit user", Err: err}
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 存在しない場合はErrUserNotFoundをラップして返す。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return &model.StorageError{Op: "delete user", Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return &model.StorageError{Op: "delete user", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return nil
}

// PostgresIdentityRepo はidentitiesテーブルを使用したidentityリポジトリ。
// 作成はPostgresUserRepo.CreateWithIdentityが担うため、検索のみを提供する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はIdPのsubjectからidentityを検索する。
// 見つからない場合はnilを返し、呼び出し側は新規ユーザーとして扱う。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var ident model.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&ident.ID, &ident.UserID, &ident.Provider, &ident.ProviderUserID, &ident.CreatedAt)
	switch {
	case notFound(err):
		return nil, nil
	case err != nil:
		return nil, &model.StorageError{Op: "find identity", Err: err}
	}
	return &ident, nil
}

var (
	_ UserRepository     = (*PostgresUserRepo)(nil)
	_ IdentityRepository = (*PostgresIdentityRepo)(nil)
)
