// Package text canonicalizes free-text key fields so that datasets authored
// independently (incident records, IBGE boundaries, population estimates) can
// be joined on municipality name.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// NormalizeKey uppercases s, decomposes it, strips diacritical marks and drops
// any remaining non-ASCII runes. The result is stable under re-application, so
// already-normalized keys pass through unchanged.
func NormalizeKey(s string) string {
	out, _, err := transform.String(stripMarks, strings.ToUpper(s))
	if err != nil {
		out = strings.ToUpper(s)
	}

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeKeys applies NormalizeKey element-wise.
func NormalizeKeys(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = NormalizeKey(s)
	}
	return out
}
