package main

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxMessageLength = 256

// formatCode matches the section-sign formatting control sequences the chat
// platform embeds in relayed text.
var formatCode = regexp.MustCompile(`(?i)§[0-9A-FK-ORZ]`)

// smartQuotes maps typographic punctuation back to its ASCII form.
var smartQuotes = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"´", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
)

// StripFormatCodes removes formatting control sequences from inbound text.
func StripFormatCodes(s string) string {
	return formatCode.ReplaceAllString(s, "")
}

// LimitCharset keeps printable ASCII plus any explicitly allowed runes. The
// receiving platform's renderer predates most of unicode, so everything
// else is dropped.
func LimitCharset(s string, allowed map[rune]struct{}) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r > 0 && r < 127) || hasRune(allowed, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasRune(allowed map[rune]struct{}, r rune) bool {
	if allowed == nil {
		return false
	}
	_, ok := allowed[r]
	return ok
}

// SanitizeOutbound flattens newlines, normalizes punctuation, limits the
// character set and truncates overlong text. Truncation counts characters,
// not bytes, so an allowed multi-byte rune is never split at the cut. The
// second return reports whether truncation happened so the caller can tell
// the author.
func SanitizeOutbound(s string, allowed map[rune]struct{}) (string, bool) {
	s = strings.ReplaceAll(s, "\n", " ")
	s = smartQuotes.Replace(s)
	s = LimitCharset(s, allowed)
	if utf8.RuneCountInString(s) > maxMessageLength {
		return string([]rune(s)[:maxMessageLength]), true
	}
	return s, false
}
