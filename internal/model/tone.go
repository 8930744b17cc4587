package model

// Tone はアップデート文の文体プリセットを表す。
type Tone string

const (
	ToneExecutive Tone = "executive"
	ToneCasual    Tone = "casual"
	ToneChangelog Tone = "changelog"
	ToneMarketing Tone = "marketing"
)

// Tones は受け付けるトーンの一覧を定義順で返す。
func Tones() []Tone {
	return []Tone{ToneExecutive, ToneCasual, ToneChangelog, ToneMarketing}
}

// Valid はトーンが既知の値かどうかを返す。
func (t Tone) Valid() bool {
	switch t {
	case ToneExecutive, ToneCasual, ToneChangelog, ToneMarketing:
		return true
	default:
		return false
	}
}
