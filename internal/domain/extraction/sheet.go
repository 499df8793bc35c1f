package extraction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
	"github.com/soundimports/pricelens/pkg/money"
)

// Confidence tiers for spreadsheet cells: an explicit template mapping
// outranks a descriptor-inferred column.
const (
	mappedColumnConfidence   = 0.9
	inferredColumnConfidence = 0.8
	typedRowConfidence       = 0.9
)

// priceColumn is a resolved column role for one run.
type priceColumn struct {
	index      int
	header     string
	kind       pricing.Kind
	confidence float64
}

func (e *Extractor) extractWorkbook(wb *content.Workbook, desc layout.Descriptor, hints Hints) *Result {
	if len(wb.TypedRows) > 0 {
		return e.extractTypedRows(wb.TypedRows)
	}
	if desc.Workbook == nil || len(desc.Workbook.Sheets) == 0 ||
		desc.Workbook.Primary >= len(wb.Sheets) {
		return &Result{Method: MethodSheet}
	}

	sheet := &wb.Sheets[desc.Workbook.Primary]
	signals := desc.Workbook.Sheets[desc.Workbook.Primary]

	columns := resolveColumns(signals, hints)
	nameCol := resolveNameColumn(signals, hints, columns)
	if len(columns) == 0 || nameCol < 0 {
		return &Result{Method: MethodSheet}
	}

	result := &Result{Method: MethodSheet}
	for _, col := range columns {
		label := col.header
		if label == "" {
			label = col.kind.Label()
		}
		result.PriceColumnsFound = append(result.PriceColumnsFound, label)
	}

	for r := signals.HeaderRow + 1; r < len(sheet.Rows); r++ {
		name := sheet.Cell(r, nameCol)
		if len(name) < 3 {
			continue
		}

		var cands []pricing.Candidate
		for _, col := range columns {
			cell := sheet.Cell(r, col.index)
			if cell == "" {
				continue
			}
			value, currency, err := money.ParseAmount(cell)
			if err != nil || !value.IsPositive() {
				continue
			}
			cands = append(cands, pricing.Candidate{
				Raw:        cell,
				Value:      value,
				Currency:   currency,
				Kind:       col.kind,
				Confidence: col.confidence,
			})
		}

		sel, ok := pricing.SelectBest(cands)
		if !ok {
			continue
		}
		p := productFromSelection(name, sel, cands, fmt.Sprintf("%s!row%d", sheet.Name, r+1), MethodSheet)
		attachOldRRP(&p, cands)
		result.Products = append(result.Products, p)
	}
	return result
}

// resolveColumns prefers the template's explicit mapping; without one, the
// descriptor's inferred price columns apply.
func resolveColumns(signals layout.SheetSignals, hints Hints) []priceColumn {
	if len(hints.PriceColumns) > 0 {
		headers := make(map[int]string, len(signals.PriceColumns))
		for _, pc := range signals.PriceColumns {
			headers[pc.Index] = pc.Header
		}
		out := make([]priceColumn, 0, len(hints.PriceColumns))
		for kind, idx := range hints.PriceColumns {
			out = append(out, priceColumn{
				index:      idx,
				header:     headers[idx],
				kind:       kind,
				confidence: mappedColumnConfidence,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
		return out
	}

	out := make([]priceColumn, 0, len(signals.PriceColumns))
	for _, pc := range signals.PriceColumns {
		out = append(out, priceColumn{
			index:      pc.Index,
			header:     pc.Header,
			kind:       pc.Kind,
			confidence: inferredColumnConfidence,
		})
	}
	return out
}

// resolveNameColumn falls back from the template mapping to descriptor
// inference to the first column not recognized as a price.
func resolveNameColumn(signals layout.SheetSignals, hints Hints, columns []priceColumn) int {
	if hints.NameColumn >= 0 {
		return hints.NameColumn
	}
	if len(signals.NameColumns) > 0 {
		return signals.NameColumns[0]
	}

	priceSet := make(map[int]bool, len(columns))
	for _, col := range columns {
		priceSet[col.index] = true
	}
	for c := 0; c < signals.ColumnCount; c++ {
		if !priceSet[c] {
			return c
		}
	}
	return -1
}

// typedField maps one PricelistRow column onto a price kind.
type typedField struct {
	label string
	kind  pricing.Kind
	conf  float64
	get   func(content.PricelistRow) string
}

var typedFields = []typedField{
	{"new rrp", pricing.KindNewRRP, typedRowConfidence, func(r content.PricelistRow) string { return r.NewRRP }},
	{"old rrp", pricing.KindOldRRP, 0.85, func(r content.PricelistRow) string { return r.OldRRP }},
	{"rrp", pricing.KindRRP, 0.85, func(r content.PricelistRow) string { return r.RRP }},
	{"retail price", pricing.KindRetail, 0.8, func(r content.PricelistRow) string { return r.RetailPrice }},
	{"cost price", pricing.KindCost, 0.8, func(r content.PricelistRow) string { return r.CostPrice }},
	{"cost", pricing.KindCost, 0.8, func(r content.PricelistRow) string { return r.Cost }},
	{"price", pricing.KindGeneric, 0.6, func(r content.PricelistRow) string { return r.Price }},
}

// extractTypedRows is the gocsv fast path: column roles are already decided
// by the header mapping, so each row resolves directly.
func (e *Extractor) extractTypedRows(rows []content.PricelistRow) *Result {
	result := &Result{Method: MethodTypedRows}
	columnsSeen := make(map[string]bool, len(typedFields))

	for i, row := range rows {
		name := strings.TrimSpace(row.ProductName())
		if len(name) < 3 {
			continue
		}

		var cands []pricing.Candidate
		for _, f := range typedFields {
			cell := strings.TrimSpace(f.get(row))
			if cell == "" {
				continue
			}
			value, currency, err := money.ParseAmount(cell)
			if err != nil || !value.IsPositive() {
				continue
			}
			if !columnsSeen[f.label] {
				columnsSeen[f.label] = true
				result.PriceColumnsFound = append(result.PriceColumnsFound, f.label)
			}
			cands = append(cands, pricing.Candidate{
				Raw:        cell,
				Value:      value,
				Currency:   currency,
				Kind:       f.kind,
				Confidence: f.conf,
			})
		}

		sel, ok := pricing.SelectBest(cands)
		if !ok {
			continue
		}
		p := productFromSelection(name, sel, cands, fmt.Sprintf("row %d", i+2), MethodTypedRows)
		p.Description = strings.TrimSpace(row.Description)
		attachOldRRP(&p, cands)
		result.Products = append(result.Products, p)
	}
	return result
}
