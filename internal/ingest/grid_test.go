package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadXLSXGrid(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"TGL NOTA", "KD LGN", "NAMA CUSTOMER", "KOTA"},
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"Produk X", 5, 1000},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error: %v", err)
	}

	grid, err := ReadXLSXGrid(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadXLSXGrid() error: %v", err)
	}
	if len(grid) != 3 {
		t.Fatalf("grid has %d rows, want 3", len(grid))
	}
	if grid[0][0] != "TGL NOTA" || grid[1][2] != "Toko A" {
		t.Errorf("grid = %v", grid)
	}

	// The grid feeds straight into the block parser.
	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 1 || records[0].ProductName != "Produk X" || records[0].TotalPrice != 5000 {
		t.Errorf("records = %+v", records)
	}
}

func TestReadXLSXGrid_NotAWorkbook(t *testing.T) {
	if _, err := ReadXLSXGrid(bytes.NewReader([]byte("plainly not a zip"))); err == nil {
		t.Fatal("expected error for a non-xlsx payload")
	}
}

func TestReadCSVGrid_RaggedRows(t *testing.T) {
	grid, err := ReadCSVGrid(strings.NewReader("a,b,c\nd\ne,f\n"))
	if err != nil {
		t.Fatalf("ReadCSVGrid() error: %v", err)
	}
	if len(grid) != 3 || len(grid[0]) != 3 || len(grid[1]) != 1 || len(grid[2]) != 2 {
		t.Errorf("grid = %v", grid)
	}
}
