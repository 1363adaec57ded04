package scoring

import (
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/pmezard/go-difflib/difflib"
)

type Verdict string

const (
	VerdictExact    Verdict = "exact"
	VerdictPhonetic Verdict = "phonetic"
	VerdictMissed   Verdict = "missed"
)

// Word is the verdict for one reference word.
type Word struct {
	Word    string  `json:"word"`
	Heard   string  `json:"heard,omitempty"`
	Verdict Verdict `json:"verdict"`
}

// WordFeedback aligns the normalized words of reference and attempt and
// grades every reference word. Substituted words whose Double Metaphone
// codes overlap are reported as phonetic matches.
func WordFeedback(reference, attempt string) []Word {
	ref := strings.Fields(Normalize(reference))
	if len(ref) == 0 {
		return nil
	}
	att := strings.Fields(Normalize(attempt))

	out := make([]Word, 0, len(ref))
	m := difflib.NewMatcher(ref, att)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				out = append(out, Word{Word: ref[op.I1+k], Heard: att[op.J1+k], Verdict: VerdictExact})
			}
		case 'r':
			for k := 0; k < op.I2-op.I1; k++ {
				w := Word{Word: ref[op.I1+k], Verdict: VerdictMissed}
				if op.J1+k < op.J2 {
					w.Heard = att[op.J1+k]
					if soundsAlike(w.Word, w.Heard) {
						w.Verdict = VerdictPhonetic
					}
				}
				out = append(out, w)
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				out = append(out, Word{Word: ref[i], Verdict: VerdictMissed})
			}
		}
	}
	return out
}

func soundsAlike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}
