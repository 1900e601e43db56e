// Package sink implements the Output Sink external interface (spec.md
// §4.4.7): serializing a terminal node's Table to a file under the
// configured data directory. Excel output uses
// github.com/xuri/excelize/v2, mirroring pkg/ingest's use of the same
// library for reads; CSV output uses the standard library's
// encoding/csv, mirroring the original Python's df.to_csv
// (_examples/original_source/backend/services/workflow_engine.py:846-861).
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/tabflowio/tabflow/pkg/table"
)

// GenerateFilename synthesizes an output filename when config.filename
// is empty, matching the legacy `output_{uuid4().hex[:8]}` shape
// (workflow_engine.py:847).
func GenerateFilename() string {
	return "output_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// WriteExcel writes t to dir/filename as a single-sheet .xlsx file,
// auto-suffixing ".xlsx" if missing. Returns the final filename.
func WriteExcel(dir, filename string, t *table.Table) (string, error) {
	if filename == "" {
		filename = GenerateFilename()
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		filename += ".xlsx"
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	for c, col := range t.ColumnNames() {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return "", fmt.Errorf("sink: building header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return "", fmt.Errorf("sink: writing header: %w", err)
		}
	}
	for r, row := range t.Rows() {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return "", fmt.Errorf("sink: building cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, table.ToText(v)); err != nil {
				return "", fmt.Errorf("sink: writing cell: %w", err)
			}
		}
	}

	path := filepath.Join(dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("sink: saving %q: %w", path, err)
	}
	return filename, nil
}

// WriteCSV writes t to dir/filename as delimited text, auto-suffixing
// ".csv" if missing. encoding is accepted for symmetry with pkg/ingest's
// ReadCSV but only "utf-8"/"" is written without transcoding; a non-UTF-8
// target encoding falls back to UTF-8 (see DESIGN.md).
func WriteCSV(dir, filename string, t *table.Table, encoding string) (string, error) {
	if filename == "" {
		filename = GenerateFilename()
	}
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("sink: creating %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.ColumnNames()); err != nil {
		return "", fmt.Errorf("sink: writing header: %w", err)
	}
	for _, row := range t.Rows() {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = table.ToText(v)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("sink: writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("sink: flushing %q: %w", path, err)
	}
	return filename, nil
}
