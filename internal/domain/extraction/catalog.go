package extraction

import (
	"regexp"
	"strings"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// unitRe recognizes specification lines by their measurement units: power,
// frequency, impedance, sound pressure and physical dimensions.
var unitRe = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:k?w|k?hz|ohms?|db|mm|cm|kg|inch(?:es)?)\b|\b\d+\s*[x×]\s*\d+\b`)

// extractCatalog handles product-block catalogs: each block contributes one
// product with its description and spec lines attached. Block boundaries
// come from the upstream extractor when it preserved them, otherwise from
// product-start lines.
func (e *Extractor) extractCatalog(pdf *content.PDFContent, hints Hints) *Result {
	blocks := catalogBlocks(pdf)

	var products []ProductCandidate
	for _, block := range blocks {
		p, ok := resolveBlock(block, hints.pairOrder(), MethodCatalog)
		if !ok {
			continue
		}
		p.Description, p.Specs = describeBlock(block)
		products = append(products, p)
	}
	return &Result{Method: MethodCatalog, Products: products}
}

// catalogBlocks slices the lines at the marked boundaries, falling back to
// product-start detection when none were preserved.
func catalogBlocks(pdf *content.PDFContent) [][]string {
	if len(pdf.BlockStarts) == 0 {
		return blocksByProductStart(pdf.Lines)
	}

	var blocks [][]string
	for i, start := range pdf.BlockStarts {
		if start < 0 || start >= len(pdf.Lines) {
			continue
		}
		end := len(pdf.Lines)
		if i+1 < len(pdf.BlockStarts) && pdf.BlockStarts[i+1] <= end {
			end = pdf.BlockStarts[i+1]
		}
		if start < end {
			blocks = append(blocks, pdf.Lines[start:end])
		}
	}
	return blocks
}

// describeBlock separates the block body into prose description and spec
// lines. Description lines are long, price-free and not product starts;
// spec lines carry measurement units.
func describeBlock(block []string) (string, []string) {
	var description []string
	var specs []string

	for _, line := range block[1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || layout.ProductStartLine(line) {
			continue
		}
		if unitRe.MatchString(trimmed) {
			specs = append(specs, trimmed)
			continue
		}
		if len(trimmed) > 30 && len(pricing.FindAll(trimmed)) == 0 {
			description = append(description, trimmed)
		}
	}
	return strings.Join(description, " "), specs
}
