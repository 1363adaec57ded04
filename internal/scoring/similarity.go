// Package scoring compares a learner's transcript with the reference text.
package scoring

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Normalize lowercases value, replaces every character outside [a-z0-9\s]
// with a space and collapses whitespace runs.
func Normalize(value string) string {
	lower := strings.ToLower(value)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity returns the sequence-matcher ratio between the normalized
// reference and attempt, scaled to 0-100 and rounded to two decimals.
// Either side normalizing to "" scores 0.
func Similarity(reference, attempt string) float64 {
	ref := Normalize(reference)
	att := Normalize(attempt)
	if ref == "" || att == "" {
		return 0
	}
	m := difflib.NewMatcher(splitChars(ref), splitChars(att))
	return round2(m.Ratio() * 100)
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
