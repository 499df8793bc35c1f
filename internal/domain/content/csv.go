package content

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// PricelistRow is the gocsv fast path for CSV pricelists whose headers use
// conventional column names. gocsv matches by header, so each field lists
// the common variants seen across supplier exports.
type PricelistRow struct {
	Product     string `csv:"product"`
	Name        string `csv:"name"`
	Item        string `csv:"item"`
	Model       string `csv:"model"`
	Description string `csv:"description"`

	Price       string `csv:"price"`
	RRP         string `csv:"rrp"`
	NewRRP      string `csv:"new rrp"`
	OldRRP      string `csv:"old rrp"`
	RetailPrice string `csv:"retail price"`
	CostPrice   string `csv:"cost price"`
	Cost        string `csv:"cost"`
}

// ProductName returns the first populated name-ish field.
func (r PricelistRow) ProductName() string {
	for _, v := range []string{r.Product, r.Name, r.Item, r.Model} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// LoadCSV decodes a CSV pricelist into a single-sheet Workbook. The
// delimiter is detected from the header line. When the headers match the
// known pricelist column names, the typed gocsv rows are attached as a fast
// path for the spreadsheet extractor.
func LoadCSV(r io.Reader, name string) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	delimiter := detectDelimiter(firstLine(data))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv has no rows")
	}

	wb := &Workbook{Sheets: []Sheet{{Name: name, Rows: rows}}}
	wb.TypedRows = decodeTypedRows(data, delimiter)
	return wb, nil
}

// decodeTypedRows attempts the gocsv header-mapped decode. A decode failure
// or rows without any recognized name column just disables the fast path.
// The decoder is built per call; gocsv's package-level reader configuration
// is shared state and concurrent loads must not see each other's delimiter.
func decodeTypedRows(data []byte, delimiter rune) []PricelistRow {
	r := csv.NewReader(bytes.NewReader(lowercaseHeader(data)))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var typed []PricelistRow
	if err := gocsv.UnmarshalDecoder(gocsv.NewSimpleDecoderFromCSVReader(r), &typed); err != nil {
		return nil
	}
	for _, row := range typed {
		if row.ProductName() != "" {
			return typed
		}
	}
	return nil
}

// lowercaseHeader lowercases the first line so gocsv header matching is
// case-insensitive across supplier exports.
func lowercaseHeader(data []byte) []byte {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return bytes.ToLower(data)
	}
	out := make([]byte, 0, len(data))
	out = append(out, bytes.ToLower(data[:idx])...)
	out = append(out, data[idx:]...)
	return out
}

func firstLine(data []byte) string {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return string(data)
	}
	return strings.TrimRight(string(data[:idx]), "\r")
}

func detectDelimiter(line string) rune {
	best := ','
	bestCount := strings.Count(line, ",")
	for _, d := range []rune{';', '\t', '|'} {
		if c := strings.Count(line, string(d)); c > bestCount {
			bestCount = c
			best = d
		}
	}
	return best
}
