package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CleanLyrics strips musical note decoration and blank lines from captured
// lyric lines, preserving playback order.
func CleanLyrics(lines []string) []string {
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = CleanLine(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return cleaned
}

// CleanLine strips musical note decoration and surrounding whitespace from a
// single lyric line.
func CleanLine(line string) string {
	return strings.TrimSpace(strings.ReplaceAll(line, "♪", ""))
}

// NormalizeLine produces the cache key form of a lyric line: lowercase,
// punctuation stripped (apostrophes kept so contractions still match),
// whitespace collapsed to single spaces.
func NormalizeLine(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\'' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DisplayTitle renders a song title for human-facing output with consistent
// title casing.
func DisplayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return titleCaser.String(title)
}
