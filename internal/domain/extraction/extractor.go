package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// ErrUnsupportedFormat marks a document kind no strategy can process.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extraction method names, reported on results and used by templates.
const (
	MethodTable       = "table"
	MethodMultiColumn = "multi_column"
	MethodCatalog     = "catalog"
	MethodLineScan    = "line_scan"
	MethodSheet       = "sheet"
	MethodTypedRows   = "typed_rows"
)

// Extractor runs the per-layout extraction strategies. Stateless apart from
// the logger; safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract produces product candidates from a classified document. The
// strategy is chosen from the layout descriptor; template hints refine
// column roles and the unlabeled-pair convention. A locus yielding no
// candidate is skipped silently; only a document kind without any strategy
// is an error.
func (e *Extractor) Extract(ctx context.Context, doc *content.Document, desc layout.Descriptor, hints Hints) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrUnsupportedFormat)
	}

	var result *Result
	switch doc.Kind {
	case content.KindPDF:
		if doc.PDF == nil {
			return nil, fmt.Errorf("%w: pdf without content", ErrUnsupportedFormat)
		}
		result = e.extractPDF(doc.PDF, desc, hints)
	case content.KindSpreadsheet:
		if doc.Workbook == nil {
			return nil, fmt.Errorf("%w: spreadsheet without workbook", ErrUnsupportedFormat)
		}
		result = e.extractWorkbook(doc.Workbook, desc, hints)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Kind)
	}

	result.Confidence = runConfidence(result.Products)
	if len(result.PriceColumnsFound) == 0 {
		result.PriceColumnsFound = kindsFound(result.Products)
	}

	e.logger.DebugContext(ctx, "extraction finished",
		slog.String("document", doc.Name),
		slog.String("method", result.Method),
		slog.Int("products", len(result.Products)),
		slog.Float64("confidence", result.Confidence),
	)
	return result, nil
}

func (e *Extractor) extractPDF(pdf *content.PDFContent, desc layout.Descriptor, hints Hints) *Result {
	switch desc.Type {
	case layout.TypeTable:
		return &Result{Method: MethodTable, Products: e.extractLines(pdf.Lines, hints, MethodTable)}
	case layout.TypeMultiColumn:
		return &Result{Method: MethodMultiColumn, Products: e.extractBlocks(blocksByProductStart(pdf.Lines), hints, MethodMultiColumn)}
	case layout.TypeCatalog:
		return e.extractCatalog(pdf, hints)
	default:
		// Lists and unstructured documents get the per-line scan; it costs
		// nothing on sparse text.
		return &Result{Method: MethodLineScan, Products: e.extractLines(pdf.Lines, hints, MethodLineScan)}
	}
}

// runConfidence scores a whole run on a 0-100 scale from the shape of its
// findings. An empty run is exactly zero.
func runConfidence(products []ProductCandidate) float64 {
	if len(products) == 0 {
		return 0
	}

	newFound, oldFound := false, false
	uniform := true
	for _, p := range products {
		if p.Kind == pricing.KindNewRRP {
			newFound = true
		}
		if p.Kind != products[0].Kind {
			uniform = false
		}
		for _, c := range p.AllPrices {
			if c.Kind == pricing.KindOldRRP {
				oldFound = true
			}
		}
	}

	score := 30.0
	if newFound {
		score += 40
	}
	if uniform {
		score += 20
	}
	if oldFound && !newFound {
		score -= 20
	}
	if len(products) >= 10 {
		score += 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// kindsFound lists the distinct resolved kind labels in first-seen order.
func kindsFound(products []ProductCandidate) []string {
	seen := make(map[pricing.Kind]bool, 4)
	var out []string
	for _, p := range products {
		if !seen[p.Kind] {
			seen[p.Kind] = true
			out = append(out, p.Kind.Label())
		}
	}
	return out
}

func hasLabeled(cands []pricing.Candidate) bool {
	for _, c := range cands {
		if c.Kind != pricing.KindGeneric {
			return true
		}
	}
	return false
}

// attachOldRRP records the superseded price when the locus carried an
// explicit Old RRP next to the selected price.
func attachOldRRP(p *ProductCandidate, cands []pricing.Candidate) {
	if p.Kind == pricing.KindOldRRP {
		return
	}
	for _, c := range cands {
		if c.Kind == pricing.KindOldRRP {
			v := c.Value
			p.OldRRP = &v
			return
		}
	}
}
