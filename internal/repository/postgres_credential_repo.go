package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/shipnote/internal/model"
)

const credentialColumns = `user_id, api_key, created_at, updated_at`

// PostgresCredentialRepo はlinear_api_keysテーブルを使用した資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

func scanCredential(row rowScanner) (*model.Credential, error) {
	var c model.Credential
	if err := row.Scan(&c.UserID, &c.APIKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get は指定ユーザーのキーを取得する。未登録の場合はnil, nilを返す。
func (r *PostgresCredentialRepo) Get(ctx context.Context, userID string) (*model.Credential, error) {
	const q = `SELECT ` + credentialColumns + ` FROM linear_api_keys WHERE user_id = $1`
	cred, err := scanCredential(r.db.QueryRowContext(ctx, q, userID))
	switch {
	case notFound(err):
		return nil, nil
	case err != nil:
		return nil, &model.StorageError{Op: "get credential", Err: err}
	}
	return cred, nil
}

// Upsert はキーを登録または置き換える。created_atは初回登録時の値を維持する。
func (r *PostgresCredentialRepo) Upsert(ctx context.Context, userID, apiKey string) (*model.Credential, error) {
	const q = `INSERT INTO linear_api_keys (` + credentialColumns + `)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET api_key = EXCLUDED.api_key, updated_at = now()
		 RETURNING ` + credentialColumns
	cred, err := scanCredential(r.db.QueryRowContext(ctx, q, userID, apiKey))
	if err != nil {
		return nil, &model.StorageError{Op: "upsert credential", Err: err}
	}

	return cred, nil
}

// Delete は指定ユーザーのキーを削除する。
func (r *PostgresCredentialRepo) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM linear_api_keys WHERE user_id = $1`, userID); err != nil {
		return &model.StorageError{Op: "delete credential", Err: err}
	}
	return nil
}

var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
