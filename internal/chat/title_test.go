package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"short", "Hello", 30, "Hello"},
		{"exact", "123456789012345678901234567890", 30, "123456789012345678901234567890"},
		{"long", "Explain quantum computing in simple terms", 30, "Explain quantum computing in s…"},
		{"runes", "日本語のタイトルはとても長いです", 5, "日本語のタ…"},
		{"newlines", "line one\nline two", 40, "line one line two"},
		{"trimmed", "  padded  ", 40, "padded"},
		{"no limit", "anything goes", 0, "anything goes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTitle(tc.text, tc.limit))
		})
	}
}
