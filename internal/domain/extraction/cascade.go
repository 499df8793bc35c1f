package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// Two-price cascade. Some suppliers quote a superseded price next to the
// current one with no labels at all; the rules below encode the documented
// positional policy for those sheets as an ordered (predicate, handler)
// chain. The cascade only engages when a locus carries two or more
// unlabeled currency numbers; labeled prices always go through SelectBest.

// modelCodeRe finds product-code tokens mid-line (rule b needs to split a
// mixed line at the second product). A code starts with an upper-case
// letter, runs at least three characters and must contain a digit, which
// keeps plain words and price labels out.
var modelCodeRe = regexp.MustCompile(`\b[A-Z][A-Z0-9-]{2,}\b`)

type lineScan struct {
	line    string
	numbers []pricing.Candidate
}

func scanLine(line string) lineScan {
	return lineScan{line: line, numbers: pricing.CurrencyNumbers(line)}
}

type cascadeRule struct {
	name    string
	applies func(lineScan) bool
	extract func(lineScan, PairOrder, string) []ProductCandidate
}

var cascadeRules = []cascadeRule{
	{
		// (a) "name PRICE1 PRICE2" on one line: the pair is the whole story.
		name: "single-line-pair",
		applies: func(s lineScan) bool {
			if len(s.numbers) != 2 {
				return false
			}
			tail := strings.TrimSpace(s.line[s.numbers[1].End:])
			return tail == "" && plausibleName(s.line[:s.numbers[0].Pos])
		},
		extract: func(s lineScan, order PairOrder, method string) []ProductCandidate {
			p := pairProduct(s.line[:s.numbers[0].Pos], s.numbers[0], s.numbers[1], order, s.line, method)
			return []ProductCandidate{p}
		},
	},
	{
		// (b) mixed line with two products where only the second carries a
		// pair: split at the second product code and treat each side on its
		// own.
		name: "mixed-line-second-pair",
		applies: func(s lineScan) bool {
			split, ok := secondCodeOffset(s.line)
			if !ok {
				return false
			}
			first := pricing.CurrencyNumbers(s.line[:split])
			second := pricing.CurrencyNumbers(s.line[split:])
			return len(first) == 1 && len(second) == 2
		},
		extract: func(s lineScan, order PairOrder, method string) []ProductCandidate {
			split, _ := secondCodeOffset(s.line)
			left, right := s.line[:split], s.line[split:]

			var out []ProductCandidate
			if nums := pricing.CurrencyNumbers(left); len(nums) == 1 {
				name := cleanName(left[:nums[0].Pos])
				if usableName(name) {
					out = append(out, productFromSelection(name, nums[0], nums, left, method))
				}
			}
			nums := pricing.CurrencyNumbers(right)
			if name := cleanName(right[:nums[0].Pos]); usableName(name) {
				out = append(out, pairProduct(name, nums[0], nums[1], order, right, method))
			}
			return out
		},
	},
	{
		// (d) fallback: two or more currency numbers on a plausible product
		// line, select the last one. Prefers the most recently quoted price
		// but can mis-select when unrelated numerics trail the line.
		name: "trailing-number-fallback",
		applies: func(s lineScan) bool {
			return len(s.numbers) >= 2 && plausibleName(s.line[:s.numbers[0].Pos])
		},
		extract: func(s lineScan, _ PairOrder, method string) []ProductCandidate {
			last := s.numbers[len(s.numbers)-1]
			last.Confidence = 0.5
			name := cleanName(s.line[:s.numbers[0].Pos])
			return []ProductCandidate{productFromSelection(name, last, s.numbers, s.line, method)}
		},
	},
}

// cascadeLine runs the single-line rules in order; the first applicable
// rule wins. ok is false when no rule engages.
func cascadeLine(line string, order PairOrder, method string) ([]ProductCandidate, bool) {
	scan := scanLine(line)
	if len(scan.numbers) < 2 {
		return nil, false
	}
	for _, rule := range cascadeRules {
		if rule.applies(scan) {
			products := rule.extract(scan, order, method)
			if len(products) == 0 {
				continue
			}
			return products, true
		}
	}
	return nil, false
}

// headerVocabRe rejects column-header lines masquerading as product names:
// a bare line made of price vocabulary is a table header, not a product.
var headerVocabRe = regexp.MustCompile(`(?i)\b(?:price|rrp|srp|cost|retail|model|product|item|description|qty|quantity)\b`)

// cascadeNameThenPrices is the name-then-prices rule: a bare name line
// followed within one to three lines by a two-price pair (apply the pair
// rule) or a single price (use it directly). Labeled prices on the
// follow-up lines resolve normally. Returns the number of follow-up lines
// consumed.
func cascadeNameThenPrices(lines []string, start int, order PairOrder, method string) (ProductCandidate, int, bool) {
	name := cleanName(lines[start])
	if !usableName(name) || headerVocabRe.MatchString(name) ||
		len(pricing.CurrencyNumbers(lines[start])) > 0 {
		return ProductCandidate{}, 0, false
	}

	var cands []pricing.Candidate
	consumed := 0
	for i := start + 1; i < len(lines) && i <= start+3; i++ {
		if layout.ProductStartLine(lines[i]) {
			break
		}
		found := pricing.FindAll(lines[i])
		if len(found) == 0 {
			if len(cands) > 0 {
				break
			}
			consumed = i - start
			continue
		}
		cands = append(cands, found...)
		consumed = i - start
		if len(cands) >= 2 {
			break
		}
	}
	if len(cands) == 0 {
		return ProductCandidate{}, 0, false
	}

	source := strings.Join(lines[start:start+consumed+1], "\n")
	if hasLabeled(cands) {
		sel, _ := pricing.SelectBest(cands)
		p := productFromSelection(name, sel, cands, source, method)
		attachOldRRP(&p, cands)
		return p, consumed, true
	}

	switch len(cands) {
	case 1:
		return productFromSelection(name, cands[0], cands, source, method), consumed, true
	case 2:
		return pairProduct(name, cands[0], cands[1], order, source, method), consumed, true
	default:
		last := cands[len(cands)-1]
		last.Confidence = 0.5
		return productFromSelection(name, last, cands, source, method), consumed, true
	}
}

// pairProduct resolves an unlabeled price pair: one member is the current
// price (tagged NewRRP), the other the superseded one (tagged OldRRP).
func pairProduct(name string, first, second pricing.Candidate, order PairOrder, source, method string) ProductCandidate {
	current, old := second, first
	if order == PairFirstCurrent {
		current, old = first, second
	}
	current.Kind = pricing.KindNewRRP
	old.Kind = pricing.KindOldRRP

	// Positional inference, so confidence sits below an explicit label.
	current.Confidence = 0.75

	p := productFromSelection(cleanName(name), current, []pricing.Candidate{old, current}, source, method)
	oldValue := old.Value
	p.OldRRP = &oldValue
	return p
}

// secondCodeOffset returns the byte offset of the second product-code token
// in the line, when there are at least two.
func secondCodeOffset(line string) (int, bool) {
	matches := modelCodeRe.FindAllStringIndex(line, -1)
	seen := 0
	for _, m := range matches {
		if !strings.ContainsAny(line[m[0]:m[1]], "0123456789") {
			continue
		}
		seen++
		if seen == 2 {
			return m[0], true
		}
	}
	return 0, false
}

// plausibleName accepts a prefix that could identify a product: long enough
// after cleanup and carrying letters or a model-code shape.
func plausibleName(prefix string) bool {
	name := cleanName(prefix)
	if !usableName(name) {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return layout.ProductStartLine(name)
}
