// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ChatSanitizerService はAIアシスタントの応答から生成したHTMLをサニタイズし、
// モデル出力に紛れ込んだマークアップがそのままDOMへ注入されることを防ぐ。
// bluemondayライブラリの許可リストベースのポリシーで、チャット整形が
// 生成するタグと属性のみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ChatSanitizerService はチャットHTMLのサニタイズ機能のインターフェースを定義する。
// アシスタント応答の整形後、表示用HTMLとして返す直前に使用される。
type ChatSanitizerService interface {
	// Sanitize はチャット整形済みHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（strong, em, code, a, br）のみを通過させ、
	// script, img, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグはhttp/httpsスキームのhrefとtarget, rel, class属性のみ許可される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// chatSanitizer はChatSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type chatSanitizer struct {
	policy *bluemonday.Policy
}

// NewChatSanitizer はChatSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: strong, em, code, a, br（チャット整形が生成しうるもののみ）
//   - code, a のclass属性を許可（整形が付与する表示用クラス）
//   - aタグ: href（http/httpsのみ）, target, rel を許可
//   - 上記以外のタグ・属性・スキームはすべて除去される
func NewChatSanitizer() *chatSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("strong", "em", "br")

	p.AllowAttrs("class").OnElements("code")

	p.AllowAttrs("href", "target", "rel", "class").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)

	return &chatSanitizer{
		policy: p,
	}
}

// Sanitize はチャット整形済みHTMLをサニタイズして安全なHTMLを返す。
func (s *chatSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
