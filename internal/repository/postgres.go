package repository

import (
	"database/sql"
	"errors"
)

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// notFound はsql.ErrNoRowsを「見つからない」として扱うかを判定する。
// 見つからない場合はnil, nilを返す規約のため、呼び出し側はエラーを捨ててnilを返す。
func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
