package security

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "空文字列は空文字列のまま",
			input: "",
			want:  "",
		},
		{
			name:  "プレーンテキストはそのまま",
			input: "All systems operational",
			want:  "All systems operational",
		},
		{
			name:  "タグが除去される",
			input: "<p>We are <strong>investigating</strong> degraded performance.</p>",
			want:  "We are investigating degraded performance.",
		},
		{
			name:  "タグ境界で単語が連結しない",
			input: "<p>Resolved</p><p>Monitoring</p>",
			want:  "Resolved Monitoring",
		},
		{
			name:  "scriptの中身ごと除去される",
			input: "<p>API</p><script>alert('major outage')</script>",
			want:  "API",
		},
		{
			name:  "エンティティが復元される",
			input: "Q&amp;A service &lt;degraded&gt;",
			want:  "Q&A service <degraded>",
		},
		{
			name:  "連続する空白と改行が畳まれる",
			input: "<p>line1</p>\n\n   <p>line2</p>",
			want:  "line1 line2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.PlainText(tt.input)
			if got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 同一入力に対して常に同一出力を返すこと
func TestPlainText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := `<div><h1>Major Outage</h1><a href="https://status.example.com">details</a></div>`

	first := sanitizer.PlainText(input)
	second := sanitizer.PlainText(input)
	if first != second {
		t.Errorf("PlainText is not deterministic: %q != %q", first, second)
	}
	if strings.Contains(first, "<") {
		t.Errorf("PlainText result still contains markup: %q", first)
	}
}
