package tts

import (
	"strings"
	"unicode/utf8"
)

// splitChunks breaks text into pieces of at most max bytes, cutting after
// sentence punctuation, then commas, then before a space. A single word
// longer than max is hard-cut on a rune boundary.
func splitChunks(text string, max int) []string {
	text = strings.Join(strings.Fields(text), " ")
	var out []string
	for text != "" {
		if len(text) <= max {
			out = append(out, text)
			break
		}
		end := cutPoint(text, max)
		if seg := strings.TrimSpace(text[:end]); seg != "" {
			out = append(out, seg)
		}
		text = strings.TrimSpace(text[end:])
	}
	return out
}

// cutPoint returns the length of the next chunk; 0 < n <= max.
func cutPoint(text string, max int) int {
	if i := strings.LastIndexAny(text[:max], ".!?;:"); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexByte(text[:max], ','); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexByte(text[:max+1], ' '); i > 0 {
		return i
	}
	n := max
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	if n == 0 {
		n = max
	}
	return n
}
