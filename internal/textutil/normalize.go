package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// NormalizeName lower-cases value and removes all non-alphanumeric characters.
func NormalizeName(value string) string {
	lowered := lowerCaser.String(strings.TrimSpace(value))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Related reports whether two normalised names are equal or one contains the
// other. Inputs are expected to be normalised already. An empty name is
// contained in every other name.
func Related(a, b string) bool {
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// LastSegment returns the text after the final dot of a reverse-DNS identifier.
func LastSegment(identifier string) string {
	if idx := strings.LastIndex(identifier, "."); idx >= 0 {
		return identifier[idx+1:]
	}
	return identifier
}

// SanitizeToken converts a display name to a lowercase hyphenated token, the
// shape used by package managers such as Homebrew ("Visual Studio Code" becomes
// "visual-studio-code"). Returns "" for empty input.
func SanitizeToken(value string) string {
	lowered := lowerCaser.String(strings.TrimSpace(value))
	var b strings.Builder
	pendingHyphen := false
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '+':
			b.WriteString("-plus")
			pendingHyphen = false
		default:
			pendingHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}
