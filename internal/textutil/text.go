package textutil

import (
	"strings"
	"unicode/utf8"
)

// SanitizeUTF8 drops invalid byte sequences so text can be stored and
// serialized safely.
func SanitizeUTF8(str string) string {
	if utf8.ValidString(str) {
		return str
	}
	var buf strings.Builder
	buf.Grow(len(str))
	for len(str) > 0 {
		r, size := utf8.DecodeRuneInString(str)
		if r == utf8.RuneError && size == 1 {
			str = str[1:]
			continue
		}
		buf.WriteRune(r)
		str = str[size:]
	}
	return buf.String()
}

// Truncate shortens str to at most maxRunes runes, appending an
// ellipsis when anything was cut.
func Truncate(str string, maxRunes int) string {
	runes := []rune(str)
	if len(runes) <= maxRunes {
		return str
	}
	return string(runes[:maxRunes]) + "..."
}
