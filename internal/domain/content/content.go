// Package content defines the decoded document model the pipeline operates
// on and the adapters that produce it from real pricelist files. Byte-level
// format handling stops here: everything downstream sees ordered text lines
// or cell grids.
package content

import "strings"

// Kind identifies the decoded document family.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
	KindUnknown     Kind = "unknown"
)

// PDFContent is pre-extracted PDF text: ordered non-blank lines plus the
// page count. BlockStarts optionally marks catalog block boundaries when the
// upstream extractor preserved them (indices into Lines).
type PDFContent struct {
	Lines       []string
	PageCount   int
	BlockStarts []int
}

// Sheet is a single worksheet as a 2D cell grid. Rows may be ragged.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is an ordered collection of sheets. TypedRows carries the gocsv
// fast-path rows when the source was a CSV whose headers matched the known
// pricelist column names; nil otherwise.
type Workbook struct {
	Sheets    []Sheet
	TypedRows []PricelistRow
}

// Document is the unit of work handed to the pipeline.
type Document struct {
	Kind     Kind
	Name     string
	Supplier string
	PDF      *PDFContent
	Workbook *Workbook
}

// NewPDFDocument wraps pre-extracted PDF lines, dropping blank lines so the
// classifier sees the same shape regardless of the upstream extractor.
func NewPDFDocument(name string, lines []string, pageCount int) *Document {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return &Document{
		Kind: KindPDF,
		Name: name,
		PDF:  &PDFContent{Lines: kept, PageCount: pageCount},
	}
}

// NewWorkbookDocument wraps an already-decoded workbook.
func NewWorkbookDocument(name string, wb *Workbook) *Document {
	return &Document{Kind: KindSpreadsheet, Name: name, Workbook: wb}
}

// Cell returns the trimmed cell at (row, col) or "" when out of range.
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) {
		return ""
	}
	r := s.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// ColumnCount returns the widest row in the sheet.
func (s *Sheet) ColumnCount() int {
	max := 0
	for _, row := range s.Rows {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}

// EmptyRatio is the fraction of cells that are blank, measured against the
// widest row. Empty sheets count as fully empty.
func (s *Sheet) EmptyRatio() float64 {
	cols := s.ColumnCount()
	if cols == 0 || len(s.Rows) == 0 {
		return 1.0
	}
	total := cols * len(s.Rows)
	empty := 0
	for _, row := range s.Rows {
		for c := 0; c < cols; c++ {
			if c >= len(row) || strings.TrimSpace(row[c]) == "" {
				empty++
			}
		}
	}
	return float64(empty) / float64(total)
}
