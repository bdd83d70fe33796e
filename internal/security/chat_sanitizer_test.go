package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewChatSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれるべき部分文字列
		wantContains []string
	}{
		{
			name:         "strongタグが許可される",
			input:        "<strong>bold text</strong>",
			wantContains: []string{"<strong>bold text</strong>"},
		},
		{
			name:         "emタグが許可される",
			input:        "<em>italic text</em>",
			wantContains: []string{"<em>italic text</em>"},
		},
		{
			name:         "brタグが許可される",
			input:        "line1<br>line2",
			wantContains: []string{"<br>", "line1", "line2"},
		},
		{
			name:         "codeタグとclass属性が許可される",
			input:        `<code class="bg-gray-200 px-1 rounded">fmt.Println</code>`,
			wantContains: []string{"<code", "class", "bg-gray-200", "fmt.Println", "</code>"},
		},
		{
			name:         "aタグとhttps hrefが許可される",
			input:        `<a href="https://example.com" target="_blank" rel="noopener" class="text-indigo-600 underline">link</a>`,
			wantContains: []string{"<a", "href", "https://example.com", "target", "rel", "link", "</a>"},
		},
		{
			name:         "http hrefも許可される",
			input:        `<a href="http://example.org/page">page</a>`,
			wantContains: []string{"http://example.org/page"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_DisallowedTags は危険なタグと属性が除去されることを検証する。
func TestSanitize_DisallowedTags(t *testing.T) {
	sanitizer := NewChatSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれてはいけない部分文字列
		wantNotContains []string
	}{
		{
			name:            "scriptタグが除去される",
			input:           `before<script>alert("xss")</script>after`,
			wantNotContains: []string{"<script", "alert"},
		},
		{
			name:            "imgタグが除去される",
			input:           `<img src="https://example.com/a.png" onerror="alert(1)">`,
			wantNotContains: []string{"<img", "onerror"},
		},
		{
			name:            "iframeタグが除去される",
			input:           `<iframe src="https://evil.example.com"></iframe>`,
			wantNotContains: []string{"<iframe", "evil.example.com"},
		},
		{
			name:            "styleタグが除去される",
			input:           `<style>body { display: none }</style>text`,
			wantNotContains: []string{"<style"},
		},
		{
			name:            "onclickイベント属性が除去される",
			input:           `<strong onclick="alert(1)">bold</strong>`,
			wantNotContains: []string{"onclick", "alert"},
		},
		{
			name:            "javascriptスキームのhrefが除去される",
			input:           `<a href="javascript:alert(1)">click</a>`,
			wantNotContains: []string{"javascript:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, notWant := range tt.wantNotContains {
				if strings.Contains(got, notWant) {
					t.Errorf("Sanitize(%q) = %q, expected NOT to contain %q", tt.input, got, notWant)
				}
			}
		})
	}
}

// TestSanitize_EmptyInput は空文字列の入力に空文字列を返すことを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewChatSanitizer()
	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty string", got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewChatSanitizer()
	input := `<strong>bold</strong> and <a href="https://example.com">link</a><script>bad()</script>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("sanitization is not idempotent: first = %q, second = %q", first, second)
	}
}
