// Package layout classifies decoded pricelist documents by structural shape.
// Classification is a pure function of content: the same lines or cells
// always produce the same descriptor (the optional AI confidence boost is
// the single exception and is injected explicitly).
package layout

import (
	"errors"

	"github.com/soundimports/pricelens/internal/domain/content"
)

// Type is the structural shape of a document.
type Type string

const (
	TypeTable       Type = "table"
	TypeMultiColumn Type = "multi-column"
	TypeCatalog     Type = "catalog"
	TypeList        Type = "list"
	TypeDocument    Type = "document"
	TypeSingleSheet Type = "single-sheet"
	TypeMultiSheet  Type = "multi-sheet"
	TypeUnknown     Type = "unknown"

	// TypeGeneric is not produced by classification; templates use it to
	// declare they apply to any layout.
	TypeGeneric Type = "generic"
)

// Subtypes refine the type for template matching and strategy selection.
const (
	SubtypePriceComparison = "price_comparison_table"
	SubtypeStandardTable   = "standard_table"
	SubtypeTwoColumn       = "two_column"
	SubtypeProductBlocks   = "product_blocks"
	SubtypePriceList       = "price_list"
	SubtypeUnstructured    = "unstructured"
	SubtypeMultiPrice      = "multi_price_column"
	SubtypeMultiDataSheet  = "multi_data_sheet"
	SubtypeStandard        = "standard"
)

// ErrUndecodable marks content unusable for its claimed document kind. It is
// only ever surfaced inside a low-confidence unknown descriptor, never as a
// returned error.
var ErrUndecodable = errors.New("content undecodable for document kind")

// Descriptor is the classification result. Created fresh per document and
// never persisted.
type Descriptor struct {
	Kind       content.Kind
	Type       Type
	Subtype    string
	Confidence float64
	PDF        *PDFSignals
	Workbook   *WorkbookSignals
	AIEnhanced bool
	Err        error
}

// IsUsable reports whether extraction strategies exist for the descriptor.
func (d Descriptor) IsUsable() bool {
	return d.Type != TypeUnknown && d.Err == nil
}
