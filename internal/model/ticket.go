package model

import "time"

// Ticket はトラッカーから取得した完了済みチケットを表す。
// ローカルには保存せず、リクエストのたびにトラッカーから取得する。
type Ticket struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	URL         string     `json:"url"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IssueDetail はID指定で取得した単一チケットの詳細を表す。
// プロンプト生成に必要な項目のみを持つ。
type IssueDetail struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// TrackerUser はAPIキーの持ち主としてトラッカーが返すユーザー情報を表す。
type TrackerUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
