package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// ExampleTitleLimit bounds titles derived from an example prompt at creation.
	ExampleTitleLimit = 30
	// RetitleLimit bounds titles derived from the first submitted user message.
	RetitleLimit = 40

	ellipsis          = "…"
	placeholderPrefix = "New Chat"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// DeriveTitle turns free text into a single-line label of at most limit runes,
// followed by an ellipsis when the text had to be cut.
func DeriveTitle(text string, limit int) string {
	text = strings.TrimSpace(lineBreaks.Replace(text))
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + ellipsis
}

func placeholderTitle(ordinal int) string {
	return fmt.Sprintf("%s (%d)", placeholderPrefix, ordinal)
}
