package layout

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/pricing"
	"github.com/soundimports/pricelens/pkg/money"
)

// PriceColumn is a column recognized as carrying prices, with the kind its
// header claims.
type PriceColumn struct {
	Index  int
	Header string
	Kind   pricing.Kind
	Score  float64
}

// SheetSignals are the structural metrics for one worksheet.
type SheetSignals struct {
	Name           string
	RowCount       int
	ColumnCount    int
	HeaderRow      int // -1 when no header row was found
	HeaderScore    int
	PriceColumns   []PriceColumn
	NameColumns    []int
	EmptyRatio     float64
	DataQuality    float64
	HasProductData bool
	Score          float64
}

// WorkbookSignals aggregates per-sheet signals; Primary indexes the sheet
// extraction should target.
type WorkbookSignals struct {
	Sheets         []SheetSignals
	Primary        int
	DataSheetCount int
}

var (
	productKeywords = []string{"product", "name", "item", "model", "sku", "code", "description"}
	priceKeywords   = []string{"price", "rrp", "retail", "cost", "amount", "srp"}
	titleKeywords   = []string{"pricelist", "price list", "prices", "products", "rrp"}

	headerKindMap = []struct {
		needle string
		kind   pricing.Kind
	}{
		{"new rrp", pricing.KindNewRRP},
		{"old rrp", pricing.KindOldRRP},
		{"current price", pricing.KindCurrent},
		{"retail price", pricing.KindRetail},
		{"retail", pricing.KindRetail},
		{"cost price", pricing.KindCost},
		{"cost", pricing.KindCost},
		{"rrp", pricing.KindRRP},
		{"srp", pricing.KindRRP},
	}
)

const (
	priceColumnThreshold = 0.5
	nameColumnThreshold  = 0.5
	headerScanRows       = 5
	headerMinHits        = 2
)

func computeWorkbookSignals(wb *content.Workbook) *WorkbookSignals {
	ws := &WorkbookSignals{Sheets: make([]SheetSignals, 0, len(wb.Sheets))}
	for i := range wb.Sheets {
		ws.Sheets = append(ws.Sheets, computeSheetSignals(&wb.Sheets[i]))
	}

	best := -1.0
	for i, s := range ws.Sheets {
		if s.HasProductData {
			ws.DataSheetCount++
		}
		if s.Score > best {
			best = s.Score
			ws.Primary = i
		}
	}
	return ws
}

func computeSheetSignals(sheet *content.Sheet) SheetSignals {
	s := SheetSignals{
		Name:        sheet.Name,
		RowCount:    len(sheet.Rows),
		ColumnCount: sheet.ColumnCount(),
		HeaderRow:   -1,
		EmptyRatio:  sheet.EmptyRatio(),
	}
	if s.RowCount == 0 || s.ColumnCount == 0 {
		s.Score = -1
		return s
	}

	s.HeaderRow, s.HeaderScore = findHeaderRow(sheet)
	s.PriceColumns = findPriceColumns(sheet, s.HeaderRow)
	s.NameColumns = findNameColumns(sheet, s.HeaderRow, s.PriceColumns)
	s.DataQuality = 1 - s.EmptyRatio
	s.HasProductData = len(s.PriceColumns) > 0 && len(s.NameColumns) > 0 && s.RowCount > 1
	s.Score = sheetScore(s)
	return s
}

// findHeaderRow scans the first rows for one scoring at least two keyword
// hits. Fuzzy matching tolerates the header typos supplier sheets carry.
func findHeaderRow(sheet *content.Sheet) (int, int) {
	limit := headerScanRows
	if limit > len(sheet.Rows) {
		limit = len(sheet.Rows)
	}
	for r := 0; r < limit; r++ {
		hits := 0
		for c := range sheet.Rows[r] {
			cell := strings.ToLower(sheet.Cell(r, c))
			if cell == "" {
				continue
			}
			if matchesAnyKeyword(cell, productKeywords) || matchesAnyKeyword(cell, priceKeywords) {
				hits++
			}
		}
		if hits >= headerMinHits {
			return r, hits
		}
	}
	return -1, 0
}

func matchesAnyKeyword(cell string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(cell, kw) || fuzzy.MatchNormalizedFold(kw, cell) {
			return true
		}
	}
	return false
}

// findPriceColumns scores each column on header keywords, the fraction of
// numeric cells in a plausible price range, and currency symbol occurrence.
// Columns scoring above the threshold are accepted, ordered by index.
func findPriceColumns(sheet *content.Sheet, headerRow int) []PriceColumn {
	cols := sheet.ColumnCount()
	dataStart := headerRow + 1

	var out []PriceColumn
	for c := 0; c < cols; c++ {
		header := ""
		if headerRow >= 0 {
			header = strings.ToLower(sheet.Cell(headerRow, c))
		}

		score := 0.0
		kind := pricing.KindGeneric
		if header != "" && matchesAnyKeyword(header, priceKeywords) {
			score += 0.4
			kind = kindFromHeader(header)
		}

		numeric, currency, total := columnValueStats(sheet, c, dataStart)
		if total > 0 {
			score += 0.5 * (float64(numeric) / float64(total))
			score += 0.2 * (float64(currency) / float64(total))
		}

		if score > priceColumnThreshold {
			out = append(out, PriceColumn{Index: c, Header: header, Kind: kind, Score: score})
		}
	}
	return out
}

// columnValueStats counts non-empty cells, how many parse as numbers in
// [1, 1e6], and how many carry a currency marker.
func columnValueStats(sheet *content.Sheet, col, dataStart int) (numeric, currency, total int) {
	low := decimal.NewFromInt(1)
	high := decimal.NewFromInt(1_000_000)

	for r := dataStart; r < len(sheet.Rows); r++ {
		cell := sheet.Cell(r, col)
		if cell == "" {
			continue
		}
		total++
		if code, _ := money.DetectCurrency(cell); code != "" {
			currency++
		}
		if v, _, err := money.ParseAmount(cell); err == nil {
			if v.GreaterThanOrEqual(low) && v.LessThanOrEqual(high) {
				numeric++
			}
		}
	}
	return numeric, currency, total
}

func kindFromHeader(header string) pricing.Kind {
	for _, entry := range headerKindMap {
		if strings.Contains(header, entry.needle) {
			return entry.kind
		}
	}
	return pricing.KindGeneric
}

// findNameColumns accepts text-heavy columns whose average length fits a
// product name, skipping recognized price columns.
func findNameColumns(sheet *content.Sheet, headerRow int, priceCols []PriceColumn) []int {
	priceSet := make(map[int]bool, len(priceCols))
	for _, pc := range priceCols {
		priceSet[pc.Index] = true
	}

	cols := sheet.ColumnCount()
	dataStart := headerRow + 1

	var out []int
	for c := 0; c < cols; c++ {
		if priceSet[c] {
			continue
		}

		textCells, total := 0, 0
		lengthSum := 0
		for r := dataStart; r < len(sheet.Rows); r++ {
			cell := sheet.Cell(r, c)
			if cell == "" {
				continue
			}
			total++
			if isNameLike(cell) {
				textCells++
				lengthSum += len(cell)
			}
		}
		if total == 0 || textCells == 0 {
			continue
		}

		avgLen := float64(lengthSum) / float64(textCells)
		lenScore := 0.0
		if avgLen >= 3 && avgLen <= 80 {
			lenScore = 1.0
		}
		score := 0.6*(float64(textCells)/float64(total)) + 0.4*lenScore

		headerBonus := 0.0
		if headerRow >= 0 && matchesAnyKeyword(strings.ToLower(sheet.Cell(headerRow, c)), productKeywords) {
			headerBonus = 0.2
		}

		if score+headerBonus > nameColumnThreshold {
			out = append(out, c)
		}
	}
	return out
}

// isNameLike rejects cells that are pure numbers and requires some letters
// or a model-code shape.
func isNameLike(cell string) bool {
	if len(cell) < 3 {
		return false
	}
	if _, _, err := money.ParseAmount(cell); err == nil {
		return false
	}
	letters := 0
	for _, r := range cell {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return float64(letters)/float64(len(cell)) > 0.3 || ProductStartLine(cell)
}

// sheetScore ranks sheets for primary-sheet selection.
func sheetScore(s SheetSignals) float64 {
	score := 0.0
	if s.HasProductData {
		score += 2.0
	}
	score += 0.5 * float64(len(s.PriceColumns))
	if s.HeaderRow >= 0 {
		score += 1.0
	}
	rows := float64(s.RowCount) / 100.0
	if rows > 1 {
		rows = 1
	}
	score += rows
	score -= s.EmptyRatio

	lowered := strings.ToLower(s.Name)
	for _, kw := range titleKeywords {
		if strings.Contains(lowered, kw) || fuzzy.MatchNormalizedFold(kw, lowered) {
			score += 0.5
			break
		}
	}
	return score
}
