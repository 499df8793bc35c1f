package pricing

import (
	"regexp"
	"strings"

	"github.com/soundimports/pricelens/pkg/money"
)

// Number fragments shared by all pattern families. Grouping separators are
// restricted to ',' and '.' so that two space-separated prices on one line
// are never swallowed into a single match.
const (
	numberCore = `\d+(?:[.,]\d{3})*(?:[.,]\d{1,2})?`
	// currencyNumber requires a currency marker; \b guards the bare "R"
	// prefix against model codes like KDL40R550.
	currencyNumber = `(?:\bR\$?\s?` + numberCore + `|[$€£]\s?` + numberCore + `)`
	// optionally-prefixed number for labeled contexts where the label
	// itself already marks the value as a price.
	labeledNumber = `((?:R\$?\s?|[$€£]\s?)?` + numberCore + `)`
)

// patternFamily is one layer of regexes for a kind, with the confidence a
// match at that layer earns.
type patternFamily struct {
	kind       Kind
	confidence float64
	re         *regexp.Regexp
}

func labeled(kind Kind, confidence float64, labels ...string) patternFamily {
	expr := `(?i)\b(?:` + strings.Join(labels, "|") + `)\s*[:=]?\s*` + labeledNumber
	return patternFamily{kind: kind, confidence: confidence, re: regexp.MustCompile(expr)}
}

// patternFamilies is ordered most-specific label first so that a claimed
// span suppresses the shorter labels it contains: "New RRP" and "Old RRP"
// must both claim their spans before the bare "RRP" family runs. Resolution
// priority is a separate concern handled by SelectBest.
var patternFamilies = []patternFamily{
	labeled(KindNewRRP, 0.9, `new\s*r\.?r\.?p\.?`, `updated\s*rrp`),
	labeled(KindOldRRP, 0.85, `old\s*r\.?r\.?p\.?`, `previous\s*rrp`, `was`),
	labeled(KindCurrent, 0.9, `current\s*price`, `price\s*now`, `now\s*only`),
	labeled(KindRetail, 0.8, `retail\s*price`, `retail`),
	labeled(KindCost, 0.8, `cost\s*price`, `dealer\s*price`, `trade\s*price`, `cost`),
	labeled(KindRRP, 0.85, `r\.?r\.?p\.?`, `recommended\s*retail(?:\s*price)?`, `srp`),
	{kind: KindGeneric, confidence: 0.6, re: regexp.MustCompile(`(` + currencyNumber + `)`)},
	{kind: KindGeneric, confidence: 0.5, re: regexp.MustCompile(`\b(\d+(?:,\d{3})*\.\d{2})\b`)},
}

// currencyNumberRe finds currency-marked numbers regardless of labeling.
// The two-price cascade uses it to count and order price occurrences.
var currencyNumberRe = regexp.MustCompile(currencyNumber)

// FindAll scans one locus of text and returns every price occurrence, kinds
// resolved by the pattern that produced them. Matches overlapped by a
// higher-priority kind are suppressed, so "New RRP: R120" yields one NewRRP
// candidate rather than a NewRRP plus a bare RRP. Unparseable or
// non-positive values are dropped; an empty result is a legitimate state,
// not an error.
func FindAll(text string) []Candidate {
	var out []Candidate
	var claimed [][2]int

	for _, family := range patternFamilies {
		matches := family.re.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			start, end := m[0], m[1]
			if overlaps(claimed, start, end) {
				continue
			}
			numStart, numEnd := m[2], m[3]
			if numStart < 0 {
				continue
			}
			raw := text[numStart:numEnd]
			value, currency, err := money.ParseAmount(raw)
			if err != nil || !value.IsPositive() {
				continue
			}
			claimed = append(claimed, [2]int{start, end})
			out = append(out, Candidate{
				Raw:        strings.TrimSpace(text[start:end]),
				Value:      value,
				Currency:   currency,
				Kind:       family.kind,
				Pos:        start,
				End:        end,
				Confidence: family.confidence,
			})
		}
	}

	sortByPosition(out)
	return out
}

// CurrencyNumbers returns the currency-marked numbers in the text in order
// of appearance. This deliberately ignores labels: it feeds the positional
// two-price cascade, which only engages when labels are absent.
func CurrencyNumbers(text string) []Candidate {
	matches := currencyNumberRe.FindAllStringIndex(text, -1)
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		raw := text[m[0]:m[1]]
		value, currency, err := money.ParseAmount(raw)
		if err != nil || !value.IsPositive() {
			continue
		}
		out = append(out, Candidate{
			Raw:        strings.TrimSpace(raw),
			Value:      value,
			Currency:   currency,
			Kind:       KindGeneric,
			Pos:        m[0],
			End:        m[1],
			Confidence: 0.6,
		})
	}
	return out
}

func overlaps(claimed [][2]int, start, end int) bool {
	for _, c := range claimed {
		if start < c[1] && end > c[0] {
			return true
		}
	}
	return false
}

func sortByPosition(cands []Candidate) {
	// Insertion sort: candidate sets per locus are tiny.
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].Pos < cands[j-1].Pos; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}
