package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示するメッセージと原因カテゴリ、対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, tracker, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidCredential    = "INVALID_CREDENTIAL"
	ErrCodeUpstream             = "UPSTREAM_ERROR"
	ErrCodeServiceMisconfigured = "SERVICE_MISCONFIGURED"
	ErrCodeGeneration           = "GENERATION_ERROR"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
// UIはこのエラーを受け取るとログイン画面へ遷移する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewBadRequestError は入力不備エラーを生成する。
// messageには不足しているフィールドが分かる文言を渡す。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  message,
		Category: "validation",
		Action:   "Check the highlighted field and submit again.",
	}
}

// NewInvalidRequestBodyError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid request body",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewInvalidCredentialError はトラッカーがAPIキーを拒否した場合のエラーを生成する。
// UIは接続状態を未接続に戻す。
func NewInvalidCredentialError(message string) *APIError {
	if message == "" {
		message = "Invalid API key"
	}
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  message,
		Category: "auth",
		Action:   "Create a new Linear API key and connect again.",
	}
}

// NewUpstreamError はトラッカーへの到達失敗またはトラッカー側のエラーを生成する。
func NewUpstreamError(message string) *APIError {
	if message == "" {
		message = "Failed to fetch tickets from Linear"
	}
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "tracker",
		Action:   "Wait a moment and try again.",
	}
}

// NewServiceMisconfiguredError は生成プロバイダーのキーがサーバーに設定されていない場合のエラーを生成する。
// 運用上の致命的な状態であり、再試行しても解消しない。
func NewServiceMisconfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceMisconfigured,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Contact the administrator.",
	}
}

// NewGenerationError は生成プロバイダーの呼び出し失敗または空応答のエラーを生成する。
// プロバイダーのメッセージが無い場合は汎用メッセージを使う。
func NewGenerationError(message string) *APIError {
	if message == "" {
		message = "Internal server error"
	}
	return &APIError{
		Code:     ErrCodeGeneration,
		Message:  message,
		Category: "generation",
		Action:   "Wait a moment and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
