// Package identifier decides whether a string is an acceptable bundle
// identifier. Every lookup result and every persisted value passes through Valid.
package identifier

import "strings"

const (
	minLength = 3
	maxLength = 200
)

// Valid reports whether candidate is syntactically a bundle identifier:
// 3 to 200 characters drawn from ASCII letters, digits, '.', '-' and '_',
// containing at least one dot and no whitespace.
func Valid(candidate string) bool {
	if len(candidate) < minLength || len(candidate) > maxLength {
		return false
	}
	if !strings.Contains(candidate, ".") {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		if !allowed(candidate[i]) {
			return false
		}
	}
	return true
}

func allowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '-', c == '_':
		return true
	default:
		return false
	}
}
