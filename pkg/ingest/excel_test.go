package ingest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeExcelFixture(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		f.NewSheet(sheet)
		f.DeleteSheet("Sheet1")
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("SetCellValue: %v", err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestReadExcelSheet_ReadsHeaderAndRows(t *testing.T) {
	path := writeExcelFixture(t, "Sheet1", [][]string{
		{"city", "amt"},
		{"A", "10"},
		{"B", "5"},
	})
	tbl, err := ReadExcelSheet(path, "Sheet1", 1, 0)
	if err != nil {
		t.Fatalf("ReadExcelSheet: %v", err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("row count = %d, want 2", tbl.RowCount())
	}
	if tbl.Cell(0, "amt") != int64(10) {
		t.Fatalf("amt[0] = %v, want int64(10)", tbl.Cell(0, "amt"))
	}
}

func TestReadExcelSheet_HeaderRowAndSkipRows(t *testing.T) {
	path := writeExcelFixture(t, "Sheet1", [][]string{
		{"report generated 2026-01-01"},
		{"city", "amt"},
		{"junk row to skip"},
		{"A", "10"},
	})
	tbl, err := ReadExcelSheet(path, "Sheet1", 2, 1)
	if err != nil {
		t.Fatalf("ReadExcelSheet: %v", err)
	}
	if tbl.RowCount() != 1 {
		t.Fatalf("row count = %d, want 1 (after header_row=2, skip_rows=1)", tbl.RowCount())
	}
	if tbl.Cell(0, "city") != "A" {
		t.Fatalf("city[0] = %v, want A", tbl.Cell(0, "city"))
	}
}

func TestReadExcelSheet_NumericIndexSelectsSheetByPosition(t *testing.T) {
	f := excelize.NewFile()
	f.NewSheet("Data")
	f.DeleteSheet("Sheet1")
	f.SetCellValue("Data", "A1", "city")
	f.SetCellValue("Data", "A2", "A")
	path := filepath.Join(t.TempDir(), "indexed.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	tbl, err := ReadExcelSheet(path, "0", 1, 0)
	if err != nil {
		t.Fatalf("ReadExcelSheet: %v", err)
	}
	if !tbl.HasColumn("city") {
		t.Fatalf("expected a 'city' column reading sheet by index 0")
	}
}
