package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/shipnote/internal/model"
)

const sessionColumns = `id, user_id, expires_at, created_at`

// PostgresSessionRepo はsessionsテーブルを使用したセッションリポジトリ。
// セッションIDはCookieに載る不透明トークンで、行の主キーを兼ねる。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	const q = `INSERT INTO sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, q, session.ID, session.UserID, session.ExpiresAt, session.CreatedAt); err != nil {
		return &model.StorageError{Op: "create session", Err: err}
	}
	return nil
}

// FindByID は有効期限内のセッションを取得する。
// 未登録または期限切れの場合はnil, nilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 AND expires_at > now()`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	switch {
	case notFound(err):
		return nil, nil
	case err != nil:
		return nil, &model.StorageError{Op: "find session", Err: err}
	}
	return s, nil
}

// DeleteByID はログアウト時に1件のセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return &model.StorageError{Op: "delete session", Err: err}
	}
	return nil
}

// DeleteByUserID は退会時に指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return &model.StorageError{Op: "delete user sessions", Err: err}
	}
	return nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
