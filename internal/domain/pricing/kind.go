// Package pricing recognizes price occurrences in pricelist text and cells
// and resolves conflicts between them. A single locus (line, row or catalog
// block) routinely carries several prices, superseded RRP next to current
// RRP or cost next to retail, and the priority table below decides which
// one is the economically current price.
package pricing

// Kind classifies what a price occurrence claims to be.
type Kind string

const (
	KindNewRRP  Kind = "new_rrp"
	KindCurrent Kind = "current_price"
	KindRRP     Kind = "rrp"
	KindRetail  Kind = "retail_price"
	KindOldRRP  Kind = "old_rrp"
	KindCost    Kind = "cost_price"
	KindGeneric Kind = "generic_price"
)

// kindPriorities is the conflict-resolution table. Higher wins per locus.
var kindPriorities = map[Kind]int{
	KindNewRRP:  100,
	KindCurrent: 90,
	KindRRP:     80,
	KindRetail:  70,
	KindOldRRP:  50,
	KindCost:    40,
	KindGeneric: 20,
}

var kindLabels = map[Kind]string{
	KindNewRRP:  "New RRP",
	KindCurrent: "Current Price",
	KindRRP:     "RRP",
	KindRetail:  "Retail Price",
	KindOldRRP:  "Old RRP",
	KindCost:    "Cost Price",
	KindGeneric: "Price",
}

// Priority returns the resolution priority for the kind; unknown kinds rank
// below everything.
func (k Kind) Priority() int {
	return kindPriorities[k]
}

// Label returns the human-readable kind name used in reports and columns.
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}
