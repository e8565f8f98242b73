package textutil

import (
	"strings"
	"unicode"
)

// Tokenize lowercases and splits on anything that is not a letter, digit,
// or hyphen. The same rule feeds the BM25 index and the keyword map so
// lexical scoring and gap detection agree on word boundaries.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, strings.Trim(b.String(), "-"))
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, strings.Trim(b.String(), "-"))
	}

	// Trimming can leave empties behind for bare hyphens.
	filtered := out[:0]
	for _, t := range out {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
