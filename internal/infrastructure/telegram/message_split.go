package telegram

import (
	"strings"
	"unicode/utf8"
)

// maxMessageLength is Telegram's per-message limit in runes.
const maxMessageLength = 4096

// splitMessage cuts text into chunks of at most limit runes, preferring a
// blank line, then a newline, then a hard rune boundary.
func splitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = maxMessageLength
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		end := byteOffsetOfRune(text, limit)
		cut := end
		if idx := strings.LastIndex(text[:end], "\n\n"); idx > 0 {
			cut = idx + 2
		} else if idx := strings.LastIndex(text[:end], "\n"); idx > 0 {
			cut = idx + 1
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

func byteOffsetOfRune(s string, n int) int {
	offset := 0
	for i := 0; i < n && offset < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return offset
}
