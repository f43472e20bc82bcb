// Package ingredient canonicalizes free-text ingredient lines and matches them
// against the household pantry.
package ingredient

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRe = regexp.MustCompile("[.,;:!?()\\[\\]{}\"'`´/\\\\|]+")
	spaceRe = regexp.MustCompile(`\s+`)
)

// Normalize reduces a raw ingredient string to a matching key. Blank input
// yields "". A single-token result has a trailing "en" (len>4) or "e" (len>3)
// removed so simple plural variants share a key; phrases are left alone.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(norm.NFC.String(s))
	s = punctRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if s == "" || strings.Contains(s, " ") {
		return s
	}
	return stem(s)
}

// stem strips suffixes until none applies. Idempotence of Normalize wins over
// a single strip, so "kaffee" becomes "kaff", not "kaffe".
func stem(tok string) string {
	for {
		n := len([]rune(tok))
		switch {
		case n > 4 && strings.HasSuffix(tok, "en"):
			tok = strings.TrimSuffix(tok, "en")
		case n > 3 && strings.HasSuffix(tok, "e"):
			tok = strings.TrimSuffix(tok, "e")
		default:
			return tok
		}
	}
}

// CleanDisplay trims s and collapses internal whitespace, keeping case and punctuation.
func CleanDisplay(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
