package content

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// LoadWorkbook decodes an XLSX stream into a Workbook grid. Sheets that fail
// to read are skipped rather than failing the whole file; a workbook with no
// readable sheet is an error.
func LoadWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	wb := &Workbook{Sheets: make([]Sheet, 0, len(names))}
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}

	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no readable sheets")
	}
	return wb, nil
}
