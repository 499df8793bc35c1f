package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/soundimports/pricelens/pkg/money"
)

// Candidate is one price occurrence at a locus.
type Candidate struct {
	Raw        string // matched text, label included
	Value      decimal.Decimal
	Currency   string
	Kind       Kind
	Pos        int // byte offset of the match within the locus text
	End        int
	Confidence float64
}

// Price returns the candidate as a formattable money value.
func (c Candidate) Price() money.Price {
	return money.NewPrice(c.Value, c.Currency)
}

// SelectBest resolves a set of candidates at one locus to exactly one
// selection. Candidates are ranked by (priority desc, confidence desc); the
// top candidate wins. A NewRRP winner gets a +0.1 confidence boost, clamped
// to 1.0, because an explicit new-RRP label is the strongest provenance
// signal we see. Total and deterministic: any non-empty input produces
// exactly one selection; empty input reports ok=false.
func SelectBest(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Kind.Priority() > best.Kind.Priority() ||
			(c.Kind.Priority() == best.Kind.Priority() && c.Confidence > best.Confidence) {
			best = c
		}
	}

	if best.Kind == KindNewRRP {
		best.Confidence += 0.1
		if best.Confidence > 1.0 {
			best.Confidence = 1.0
		}
	}
	return best, true
}
