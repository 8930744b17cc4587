// Package prompt はトーンとチケット一覧から生成用プロンプトを組み立てる。
package prompt

import (
	"strings"

	"github.com/hitoshi/shipnote/internal/model"
	"github.com/hitoshi/shipnote/internal/security"
)

// SystemRole は生成モデルに与える固定のシステム指示。
const SystemRole = "You are a product manager writing updates about recently shipped features and improvements."

const (
	ticketsHeader  = "Here are the completed tickets to include in the update:"
	closingRequest = "Please generate a concise update that incorporates these changes in the specified tone."
)

var instructions = map[model.Tone]string{
	model.ToneExecutive: "Write a formal, business-focused update that highlights key achievements and their impact on business goals.",
	model.ToneCasual:    "Write a friendly, conversational update that makes technical changes accessible to everyone.",
	model.ToneChangelog: "Write a technical, detailed update that clearly lists all changes and their technical implications.",
	model.ToneMarketing: "Write an engaging, promotional update that highlights the value and benefits of the changes.",
}

// bluemondayのポリシーは並行利用できる
var sanitizer = security.NewTextSanitizer()

// Instruction はトーンに対応する固定の指示文を返す。未知のトーンではfalseを返す。
func Instruction(tone model.Tone) (string, bool) {
	s, ok := instructions[tone]
	return s, ok
}

// Build はトーンの指示文、チケットの箇条書き、締めの依頼文を連結したプロンプトを返す。
// チケットは渡された順に並べ、説明が空でなければタイトルの下に字下げして続ける。
// 未知のトーンはBAD_REQUESTとなる。
func Build(tone model.Tone, tickets []model.IssueDetail) (string, error) {
	instruction, ok := Instruction(tone)
	if !ok {
		return "", model.NewBadRequestError("Invalid tone selected")
	}

	items := make([]string, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, renderTicket(t))
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(instruction)
	b.WriteString("\n\n")
	b.WriteString(ticketsHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(items, "\n"))
	b.WriteString("\n")
	b.WriteString(closingRequest)
	b.WriteString("\n")
	return b.String(), nil
}

func renderTicket(t model.IssueDetail) string {
	var b strings.Builder
	b.WriteString("\n- ")
	b.WriteString(singleLine(sanitizer.Plain(t.Title)))
	b.WriteString("\n")

	desc := strings.TrimSpace(sanitizer.Plain(t.Description))
	if desc == "" {
		return b.String()
	}
	// 複数行の説明は各行を字下げして箇条書きの構造を保つ
	for _, line := range strings.Split(desc, "\n") {
		b.WriteString("  ")
		b.WriteString(strings.TrimRight(line, " \t\r"))
		b.WriteString("\n")
	}
	return b.String()
}

// singleLine はタイトル中の改行を空白に置き換える。
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
