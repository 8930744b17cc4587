package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はチケットのタイトルと説明からHTMLマークアップを除去する。
// 結果はプロンプトに埋め込むプレーンテキストとして扱う。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Plain はマークアップを取り除いたテキストを返す。
// bluemondayがエスケープした実体参照は元の文字に戻す。
// タグを含まない入力はそのまま返すため、"<" や "&" を含む通常の文も変化しない。
func (s *TextSanitizer) Plain(text string) string {
	if !strings.ContainsRune(text, '<') {
		return text
	}
	return html.UnescapeString(s.policy.Sanitize(text))
}
