package assistant

import "testing"

// TestFormatter_Format はマークダウンサブセットとURLのHTML整形を検証する。
func TestFormatter_Format(t *testing.T) {
	f := NewFormatter(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "太字",
			input: "this is **bold** text",
			want:  "this is <strong>bold</strong> text",
		},
		{
			name:  "斜体",
			input: "this is *italic* text",
			want:  "this is <em>italic</em> text",
		},
		{
			name:  "インラインコード",
			input: "run `go version` first",
			want:  `run <code class="bg-gray-200 px-1 rounded">go version</code> first`,
		},
		{
			name:  "裸URLはリンクになる",
			input: "see https://example.com/docs for details",
			want:  `see <a href="https://example.com/docs" target="_blank" rel="noopener" class="text-indigo-600 underline">https://example.com/docs</a> for details`,
		},
		{
			name:  "太字は斜体より先に処理される",
			input: "**strong** and *soft*",
			want:  "<strong>strong</strong> and <em>soft</em>",
		},
		{
			name:  "複数規則の組み合わせ",
			input: "**Go** uses `gofmt`, see *docs*",
			want:  `<strong>Go</strong> uses <code class="bg-gray-200 px-1 rounded">gofmt</code>, see <em>docs</em>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Format(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

type upperSanitizer struct{}

func (upperSanitizer) Sanitize(rawHTML string) string { return "SANITIZED:" + rawHTML }

// TestFormatter_Sanitizer は整形結果が必ずサニタイザを通ることを検証する。
func TestFormatter_Sanitizer(t *testing.T) {
	f := NewFormatter(upperSanitizer{})

	got := f.Format("**x**")
	want := "SANITIZED:<strong>x</strong>"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
