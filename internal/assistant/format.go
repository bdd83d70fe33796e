// Package assistant はAIチャットアシスタント機能を提供する。
// 生成系チャットAPIの呼び出し、端末ローカルの履歴保存、応答の表示用整形を含む。
package assistant

import (
	"regexp"
)

// 整形規則。マークダウンのサブセット（太字・斜体・インラインコード）と
// 裸URLのみを対象とし、順序は太字 → 斜体 → コード → URL で固定。
var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.*?)\*`)
	codePattern   = regexp.MustCompile("`(.*?)`")
	urlPattern    = regexp.MustCompile(`(https?://[^\s]+)`)
)

// Formatter はアシスタント応答を表示用HTMLへ整形する。
// 整形結果は必ずサニタイザを通してから返す。モデル出力に含まれる
// 任意のマークアップが信頼済みHTMLとして残ることを防ぐ。
type Formatter struct {
	sanitizer Sanitizer
}

// Sanitizer は整形済みHTMLの最終サニタイズインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// NewFormatter はFormatterの新しいインスタンスを生成する。
// sanitizerがnilの場合はサニタイズを行わない（テスト用）。
func NewFormatter(sanitizer Sanitizer) *Formatter {
	return &Formatter{sanitizer: sanitizer}
}

// Format はテキストを表示用HTMLへ整形する。
//
//	**bold**   → <strong>bold</strong>
//	*italic*   → <em>italic</em>
//	`code`     → <code class="bg-gray-200 px-1 rounded">code</code>
//	http(s)URL → <a href="..." target="_blank" rel="noopener" class="text-indigo-600 underline">...</a>
func (f *Formatter) Format(text string) string {
	out := boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")
	out = codePattern.ReplaceAllString(out, `<code class="bg-gray-200 px-1 rounded">$1</code>`)
	out = urlPattern.ReplaceAllString(out, `<a href="$1" target="_blank" rel="noopener" class="text-indigo-600 underline">$1</a>`)

	if f.sanitizer != nil {
		out = f.sanitizer.Sanitize(out)
	}
	return out
}
