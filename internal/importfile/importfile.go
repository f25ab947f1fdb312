// Package importfile parses delimited files into a neutral header+rows table
// for the reconciler. Parsing knows nothing about columns or types; it only
// squares the input up.
package importfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Table is the parsed shape of an import file: a header row plus data rows,
// every row squared to the header's width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// DetectDelimiter picks the field separator from a file name. Tab-separated
// exports are common enough to deserve the special case; everything else is
// treated as comma-separated.
func DetectDelimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// Parse reads a delimited file. Rows shorter than the header are padded with
// blanks, longer rows are truncated. An input without a header row is
// rejected; a header-only file yields an empty table.
func Parse(r io.Reader, delimiter rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("import file is empty")
	}

	headers := records[0]
	if len(headers) > 0 {
		// Spreadsheet exports often carry a UTF-8 BOM on the first header.
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	t := &Table{Headers: headers}
	for _, rec := range records[1:] {
		row := make([]string, len(headers))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		if blankRow(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blankRow(row []string) bool {
	for _, f := range row {
		if f != "" {
			return false
		}
	}
	return true
}
