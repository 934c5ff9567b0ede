package util

import (
	"strings"
	"unicode/utf8"
)

// SplitText breaks text into chunks of at most limit bytes. It prefers to cut
// at a paragraph break, then a line break, a sentence end and finally a space;
// words longer than limit are cut at a rune boundary.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := cutPoint(text, limit)
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func cutPoint(text string, limit int) int {
	// A separator may start right at the limit, since it is trimmed away.
	window := text[:limit+1]
	for _, sep := range []string{"\n\n", "\n", ". ", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	// No separator: back off to a rune boundary.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}
