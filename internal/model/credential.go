package model

import (
	"fmt"
	"time"
)

// Credential はユーザーごとに1件だけ保存されるLinear APIキーを表す。
// 有効期限は持たず、有効性は都度トラッカーに問い合わせて確認する。
type Credential struct {
	UserID    string
	APIKey    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StorageError は永続化層の失敗を表す。
// 「見つからない」は正常系として扱うため、このエラーにはならない。
type StorageError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}
