// Package normalize turns raw contact fields into exact-match lookup keys.
//
// Text keys are trimmed, lower-cased and stripped of diacritics through
// canonical decomposition; no other letter is changed, so "Matheus" and
// "Mateus" stay distinct. Phone keys keep only decimal digits.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD and recomposes the rest.
// A transform.Transformer is stateful, so a new chain is built per call.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Text returns the comparison key for an email or a name.
func Text(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	out, _, err := transform.String(stripMarks(), s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

// Phone returns the digits of raw, dropping every other character.
func Phone(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
