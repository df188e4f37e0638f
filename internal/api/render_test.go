package api

import (
	"strings"
	"testing"
)

func TestRendererMarkdown(t *testing.T) {
	r := NewRenderer()

	cases := []struct {
		name string
		in   string
		want []string
		deny []string
	}{
		{name: "emphasis", in: "**bold** and `code`", want: []string{"<strong>bold</strong>", "<code>code</code>"}},
		{name: "table", in: "| a | b |\n|---|---|\n| 1 | 2 |", want: []string{"<table>", "<td>1</td>"}},
		{name: "script stripped", in: "hi <script>alert(1)</script>", deny: []string{"<script", "alert(1)</script>"}},
		{name: "javascript link", in: "[x](javascript:alert(1))", deny: []string{"javascript:"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := r.Render(tc.in)
			for _, w := range tc.want {
				if !strings.Contains(out, w) {
					t.Fatalf("expected %q in %q", w, out)
				}
			}
			for _, d := range tc.deny {
				if strings.Contains(out, d) {
					t.Fatalf("unexpected %q in %q", d, out)
				}
			}
		})
	}
}
