package extraction

import (
	"strings"

	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// blocksByProductStart reconstructs pseudo-blocks from reflowed multi-column
// text: a block runs from one product-start line to the next. Lines before
// the first product start belong to no block.
func blocksByProductStart(lines []string) [][]string {
	var blocks [][]string
	var current []string

	for _, line := range lines {
		if layout.ProductStartLine(line) {
			if len(current) > 0 {
				blocks = append(blocks, current)
			}
			current = []string{line}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// extractBlocks treats each block as one locus: the product name comes from
// the start line, the price from the block's concatenated text.
func (e *Extractor) extractBlocks(blocks [][]string, hints Hints, method string) []ProductCandidate {
	var out []ProductCandidate
	for _, block := range blocks {
		if p, ok := resolveBlock(block, hints.pairOrder(), method); ok {
			out = append(out, p)
		}
	}
	return out
}

// resolveBlock resolves one product from a block of lines. Labeled prices
// win over the positional pair convention; a block without any price yields
// nothing.
func resolveBlock(block []string, order PairOrder, method string) (ProductCandidate, bool) {
	if len(block) == 0 {
		return ProductCandidate{}, false
	}

	text := strings.Join(block, " ")
	name := blockName(block[0])
	if !usableName(name) {
		return ProductCandidate{}, false
	}

	cands := pricing.FindAll(text)
	if hasLabeled(cands) {
		sel, _ := pricing.SelectBest(cands)
		p := productFromSelection(name, sel, cands, text, method)
		attachOldRRP(&p, cands)
		return p, true
	}

	nums := pricing.CurrencyNumbers(text)
	switch len(nums) {
	case 0:
		return ProductCandidate{}, false
	case 1:
		return productFromSelection(name, nums[0], nums, text, method), true
	case 2:
		return pairProduct(name, nums[0], nums[1], order, text, method), true
	default:
		last := nums[len(nums)-1]
		last.Confidence = 0.5
		return productFromSelection(name, last, nums, text, method), true
	}
}

// blockName strips any price spans off the start line and cleans up what is
// left.
func blockName(startLine string) string {
	nums := pricing.CurrencyNumbers(startLine)
	if len(nums) > 0 {
		startLine = startLine[:nums[0].Pos]
	}
	return cleanName(startLine)
}
