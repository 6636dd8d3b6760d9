package catalog

import (
	"strings"
	"unicode/utf8"
)

// CollapseSpace turns non-breaking spaces and whitespace runs into single spaces.
func CollapseSpace(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
