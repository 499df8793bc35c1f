package layout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundimports/pricelens/internal/domain/content"
)

// enhanceBelow is the confidence under which the optional AI collaborator is
// consulted; aiBoost is the fixed bump a successful enhancement earns.
const (
	enhanceBelow = 0.7
	aiBoost      = 0.1
)

// Classifier turns decoded documents into layout descriptors. Construct one
// per pipeline; all state (the vocabulary matcher) is immutable after
// construction, so a Classifier is safe for concurrent use.
type Classifier struct {
	vocab    *vocabMatcher
	enhancer Enhancer
	logger   *slog.Logger
}

// NewClassifier builds a classifier. enhancer may be nil; classification
// never requires it.
func NewClassifier(enhancer Enhancer, logger *slog.Logger) *Classifier {
	return &Classifier{
		vocab:    newVocabMatcher(),
		enhancer: enhancer,
		logger:   logger,
	}
}

// pdfRule is one row of the priority-ordered decision table. The first rule
// whose predicate holds classifies the document.
type pdfRule struct {
	name    string
	applies func(PDFSignals) bool
	build   func(PDFSignals) (Type, string, float64)
}

var pdfRules = []pdfRule{
	{
		name:    "tabular",
		applies: func(s PDFSignals) bool { return s.Tabularity >= 0.35 },
		build: func(s PDFSignals) (Type, string, float64) {
			subtype := SubtypeStandardTable
			if s.Vocabulary.NewRRP && s.Vocabulary.OldRRP {
				subtype = SubtypePriceComparison
			}
			return TypeTable, subtype, 0.5 + 0.5*s.Tabularity
		},
	},
	{
		name:    "column-alternation",
		applies: func(s PDFSignals) bool { return s.ColumnAlternation >= 0.4 },
		build: func(s PDFSignals) (Type, string, float64) {
			return TypeMultiColumn, SubtypeTwoColumn, 0.45 + 0.5*s.ColumnAlternation
		},
	},
	{
		name:    "catalog-blocks",
		applies: func(s PDFSignals) bool { return s.CatalogScore >= 0.3 },
		build: func(s PDFSignals) (Type, string, float64) {
			return TypeCatalog, SubtypeProductBlocks, 0.4 + 0.5*s.CatalogScore
		},
	},
	{
		name:    "price-density-floor",
		applies: func(s PDFSignals) bool { return s.PriceDensity >= 0.1 },
		build: func(s PDFSignals) (Type, string, float64) {
			return TypeList, SubtypePriceList, 0.3 + 0.4*s.PriceDensity
		},
	},
}

// Classify produces a layout descriptor for the document. It never returns
// an error and never panics: undecodable content yields an unknown
// descriptor with confidence 0.1 and the cause attached. Deterministic for
// identical content when no enhancer is configured.
func (c *Classifier) Classify(ctx context.Context, doc *content.Document) (desc Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "classification panic recovered", slog.Any("cause", r))
			desc = unknownDescriptor(content.KindUnknown, fmt.Errorf("%w: %v", ErrUndecodable, r))
		}
	}()

	switch {
	case doc == nil:
		return unknownDescriptor(content.KindUnknown, fmt.Errorf("%w: nil document", ErrUndecodable))
	case doc.Kind == content.KindPDF:
		desc = c.classifyPDF(doc)
	case doc.Kind == content.KindSpreadsheet:
		desc = c.classifyWorkbook(doc)
	default:
		return unknownDescriptor(doc.Kind, fmt.Errorf("%w: kind %q", ErrUndecodable, doc.Kind))
	}

	desc = c.maybeEnhance(ctx, desc, doc)
	return desc
}

func (c *Classifier) classifyPDF(doc *content.Document) Descriptor {
	if doc.PDF == nil || len(doc.PDF.Lines) == 0 {
		return unknownDescriptor(content.KindPDF, fmt.Errorf("%w: no extracted lines", ErrUndecodable))
	}

	signals := computePDFSignals(doc.PDF, c.vocab)
	desc := Descriptor{Kind: content.KindPDF, PDF: &signals}

	for _, rule := range pdfRules {
		if rule.applies(signals) {
			desc.Type, desc.Subtype, desc.Confidence = rule.build(signals)
			desc.Confidence = clamp01(desc.Confidence)
			return desc
		}
	}

	// Fell through: unstructured document. Half the strongest signal so a
	// near-miss still ranks above noise.
	strongest := max4(signals.Tabularity, signals.ColumnAlternation, signals.CatalogScore, signals.PriceDensity)
	desc.Type = TypeDocument
	desc.Subtype = SubtypeUnstructured
	desc.Confidence = clamp01(strongest * 0.5)
	if desc.Confidence < 0.1 {
		desc.Confidence = 0.1
	}
	return desc
}

func (c *Classifier) classifyWorkbook(doc *content.Document) Descriptor {
	if doc.Workbook == nil || len(doc.Workbook.Sheets) == 0 {
		return unknownDescriptor(content.KindSpreadsheet, fmt.Errorf("%w: no sheets", ErrUndecodable))
	}

	signals := computeWorkbookSignals(doc.Workbook)
	desc := Descriptor{Kind: content.KindSpreadsheet, Workbook: signals}

	primary := signals.Sheets[signals.Primary]
	if primary.RowCount == 0 || primary.ColumnCount == 0 {
		return unknownDescriptor(content.KindSpreadsheet, fmt.Errorf("%w: all sheets empty", ErrUndecodable))
	}

	if signals.DataSheetCount > 1 {
		desc.Type = TypeMultiSheet
	} else {
		desc.Type = TypeSingleSheet
	}

	switch {
	case len(primary.PriceColumns) >= 2:
		desc.Subtype = SubtypeMultiPrice
	case signals.DataSheetCount > 1:
		desc.Subtype = SubtypeMultiDataSheet
	default:
		desc.Subtype = SubtypeStandard
	}

	conf := 0.3
	if primary.HasProductData {
		conf += 0.3
	}
	if primary.HeaderRow >= 0 {
		conf += 0.15
	}
	conf += 0.05 * float64(len(primary.PriceColumns))
	desc.Confidence = clamp01(conf)
	return desc
}

// maybeEnhance consults the optional AI collaborator for low-confidence
// classifications. Any failure is swallowed: enhancement is never required.
func (c *Classifier) maybeEnhance(ctx context.Context, desc Descriptor, doc *content.Document) Descriptor {
	if c.enhancer == nil || desc.Confidence >= enhanceBelow {
		return desc
	}

	enhanced, err := c.enhancer.Enhance(ctx, desc, doc)
	if err != nil {
		c.logger.WarnContext(ctx, "layout enhancement skipped", slog.Any("error", err))
		return desc
	}

	enhanced.Confidence = clamp01(enhanced.Confidence + aiBoost)
	enhanced.AIEnhanced = true
	return enhanced
}

func unknownDescriptor(kind content.Kind, err error) Descriptor {
	return Descriptor{Kind: kind, Type: TypeUnknown, Confidence: 0.1, Err: err}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max4(a, b, c, d float64) float64 {
	m := a
	for _, v := range []float64{b, c, d} {
		if v > m {
			m = v
		}
	}
	return m
}
