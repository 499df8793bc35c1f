package layout

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// VocabFlags records which price-vocabulary terms appear in a document.
// Which of these are present drives both the table subtype and template
// matching: a sheet that mentions both New and Old RRP is a price
// comparison, whatever its columns look like.
type VocabFlags struct {
	NewRRP bool
	OldRRP bool
	Cost   bool
	Retail bool
}

// Count returns how many of the four terms were seen.
func (v VocabFlags) Count() int {
	n := 0
	for _, b := range []bool{v.NewRRP, v.OldRRP, v.Cost, v.Retail} {
		if b {
			n++
		}
	}
	return n
}

// vocabTerms is ordered; match indices from the Aho-Corasick matcher map
// back into this slice.
var vocabTerms = []string{"new rrp", "old rrp", "cost", "retail"}

// vocabMatcher scans lines for price vocabulary in a single pass per line.
// It is immutable after construction and safe for concurrent use.
type vocabMatcher struct {
	matcher *ahocorasick.Matcher
}

func newVocabMatcher() *vocabMatcher {
	patterns := make([][]byte, len(vocabTerms))
	for i, t := range vocabTerms {
		patterns[i] = []byte(t)
	}
	return &vocabMatcher{matcher: ahocorasick.NewMatcher(patterns)}
}

// scan returns the vocabulary flags plus the fraction of lines containing at
// least one term.
func (m *vocabMatcher) scan(lines []string) (VocabFlags, float64) {
	var flags VocabFlags
	hitLines := 0

	for _, line := range lines {
		hits := m.matcher.Match([]byte(strings.ToLower(line)))
		if len(hits) == 0 {
			continue
		}
		hitLines++
		for _, idx := range hits {
			switch vocabTerms[idx] {
			case "new rrp":
				flags.NewRRP = true
			case "old rrp":
				flags.OldRRP = true
			case "cost":
				flags.Cost = true
			case "retail":
				flags.Retail = true
			}
		}
	}

	if len(lines) == 0 {
		return flags, 0
	}
	return flags, float64(hitLines) / float64(len(lines))
}
