package extraction

import (
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// extractLines is the per-line strategy for tables and price lists: every
// line is its own locus. Labeled prices resolve through SelectBest with the
// product name taken as the text preceding the winning match; unlabeled
// multi-price lines go through the two-price cascade.
func (e *Extractor) extractLines(lines []string, hints Hints, method string) []ProductCandidate {
	var out []ProductCandidate

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		cands := pricing.FindAll(line)

		if hasLabeled(cands) {
			sel, ok := pricing.SelectBest(cands)
			if !ok {
				continue
			}
			name := cleanName(line[:sel.Pos])
			if !usableName(name) {
				continue
			}
			p := productFromSelection(name, sel, cands, line, method)
			attachOldRRP(&p, cands)
			out = append(out, p)
			continue
		}

		if products, ok := cascadeLine(line, hints.pairOrder(), method); ok {
			out = append(out, products...)
			continue
		}

		// Single unlabeled currency number: use it when the prefix names a
		// product.
		if len(cands) == 1 {
			name := cleanName(line[:cands[0].Pos])
			if usableName(name) {
				out = append(out, productFromSelection(name, cands[0], cands, line, method))
			}
			continue
		}

		// Bare name line with its prices on the following lines.
		if p, consumed, ok := cascadeNameThenPrices(lines, i, hints.pairOrder(), method); ok {
			out = append(out, p)
			i += consumed
		}
	}
	return out
}
