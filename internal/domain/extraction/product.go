// Package extraction turns a classified document into product candidates.
// Each layout type has its own strategy; all of them reduce a document to
// loci (lines, rows or blocks), recognize prices per locus with the pricing
// package, and resolve conflicts through the same selection rule. A locus
// without a usable candidate is skipped, never an error.
package extraction

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/soundimports/pricelens/internal/domain/pricing"
	"github.com/soundimports/pricelens/pkg/money"
)

// ProductCandidate is one extracted product, ready for the validation
// collaborator. Confidence reflects extraction provenance, not business
// validity.
type ProductCandidate struct {
	Name        string
	Price       decimal.Decimal
	Currency    string
	Kind        pricing.Kind
	OldRRP      *decimal.Decimal
	Description string
	Specs       []string
	AllPrices   []pricing.Candidate
	Source      string // the locus text the product came from
	Method      string // strategy that produced it
	Confidence  float64
}

// DisplayPrice formats the selected price for reports.
func (p ProductCandidate) DisplayPrice() string {
	return money.NewPrice(p.Price, p.Currency).Format()
}

// Result is the outcome of one extraction run.
type Result struct {
	Products          []ProductCandidate
	PriceColumnsFound []string
	Confidence        float64 // 0-100
	Method            string
}

// PairOrder states which member of an unlabeled two-price pair is the
// current price. Supplier sheets that show superseded-then-current pairs
// follow the second-is-current convention; the order is configurable per
// template because the convention is positional, not verified per supplier.
type PairOrder string

const (
	PairSecondCurrent PairOrder = "second_current"
	PairFirstCurrent  PairOrder = "first_current"
)

// Hints carries template-derived guidance into a run: explicit column roles
// for spreadsheets and the unlabeled-pair convention. Zero hints mean "infer
// everything from the layout descriptor".
type Hints struct {
	NameColumn     int // -1 = infer from descriptor signals
	PriceColumns   map[pricing.Kind]int
	PricePairOrder PairOrder
}

// DefaultHints returns hints that defer every decision to the descriptor.
func DefaultHints() Hints {
	return Hints{NameColumn: -1, PricePairOrder: PairSecondCurrent}
}

func (h Hints) pairOrder() PairOrder {
	if h.PricePairOrder == PairFirstCurrent {
		return PairFirstCurrent
	}
	return PairSecondCurrent
}

// productFromSelection builds a candidate from a resolved price selection.
func productFromSelection(name string, sel pricing.Candidate, all []pricing.Candidate, source, method string) ProductCandidate {
	return ProductCandidate{
		Name:       strings.TrimSpace(name),
		Price:      sel.Value,
		Currency:   sel.Currency,
		Kind:       sel.Kind,
		AllPrices:  all,
		Source:     source,
		Method:     method,
		Confidence: sel.Confidence,
	}
}

// usableName rejects fragments too short to identify a product.
func usableName(name string) bool {
	return len(strings.TrimSpace(name)) > 3
}

// cleanName strips list bullets, separators and trailing punctuation left
// over after the price spans are removed.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "-–|•*\t ")
	name = strings.TrimRight(name, ":=,.")
	return strings.TrimSpace(name)
}
