// Package ingest decodes spreadsheet and delimited-text files into
// table.Table values for the "source" and "source_csv" operators
// (spec.md §4.4.1). Excel decoding uses github.com/xuri/excelize/v2, the
// library present in the retrieval pack
// (other_examples/manifests/OmniMCP-AI-excelize); the original Python
// source used pandas' read_excel with the same header_row/skip_rows
// semantics we replicate here
// (_examples/original_source/backend/services/workflow_engine.py:248-267).
package ingest

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/tabflowio/tabflow/pkg/table"
)

// ReadExcelSheet reads one sheet from path into a Table. sheetName may be
// a literal sheet name or a stringified zero-based index (pandas-style
// sheet_name=0 compatibility). headerRow is 1-based; skipRows additional
// rows are dropped immediately after the header.
func ReadExcelSheet(path, sheetName string, headerRow, skipRows int) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening %q: %w", path, err)
	}
	defer f.Close()

	resolved := sheetName
	if idx, err := strconv.Atoi(sheetName); err == nil {
		sheets := f.GetSheetList()
		if idx < 0 || idx >= len(sheets) {
			return nil, fmt.Errorf("ingest: sheet index %d out of range (%d sheets)", idx, len(sheets))
		}
		resolved = sheets[idx]
	}

	rows, err := f.GetRows(resolved)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading sheet %q: %w", resolved, err)
	}
	if headerRow < 1 {
		headerRow = 1
	}
	headerIdx := headerRow - 1
	if headerIdx >= len(rows) {
		return table.Empty(nil), nil
	}

	header := rows[headerIdx]
	dataStart := headerIdx + 1 + skipRows
	var dataRows [][]string
	if dataStart < len(rows) {
		dataRows = rows[dataStart:]
	}

	return buildTableFromStrings(header, dataRows), nil
}

// buildTableFromStrings constructs a Table from a header row and string
// data rows, best-effort inferring each column's type from its values
// (spec.md §4.4.1 source_csv: "Field types are inferred best-effort").
// Short rows are padded with null, long rows truncated to header width.
func buildTableFromStrings(header []string, dataRows [][]string) *table.Table {
	width := len(header)
	raw := make([][]any, len(dataRows))
	for r, row := range dataRows {
		cells := make([]any, width)
		for c := 0; c < width; c++ {
			if c < len(row) {
				cells[c] = row[c]
			} else {
				cells[c] = nil
			}
		}
		raw[r] = cells
	}

	columns := make([]table.Column, width)
	for c := 0; c < width; c++ {
		values := make([]string, 0, len(raw))
		for _, row := range raw {
			if s, ok := row[c].(string); ok {
				values = append(values, s)
			}
		}
		columns[c] = table.Column{Name: header[c], Type: inferColumnType(values)}
	}

	rows := make([][]any, len(raw))
	for r, row := range raw {
		converted := make([]any, width)
		for c := 0; c < width; c++ {
			converted[c] = coerceInferred(row[c], columns[c].Type)
		}
		rows[r] = converted
	}

	return table.New(columns, rows)
}
