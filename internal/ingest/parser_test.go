package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func invoiceHeader() []string {
	return []string{"TGL NOTA", "KD LGN", "NAMA CUSTOMER", "KOTA"}
}

func TestParse_CarriedState(t *testing.T) {
	grid := Grid{
		{"LAPORAN PENJUALAN", "", "", ""},
		invoiceHeader(),
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"Produk X", "5", "1000", ""},
		{"Produk Y", "2", "2000", ""},
	}

	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	wantDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, rec := range records {
		if !rec.Date.Equal(wantDate) {
			t.Errorf("record %d: date = %v, want %v", i, rec.Date, wantDate)
		}
		if rec.Customer != "Toko A" {
			t.Errorf("record %d: customer = %q, want %q", i, rec.Customer, "Toko A")
		}
		if rec.City != "Jakarta" {
			t.Errorf("record %d: city = %q, want %q", i, rec.City, "Jakarta")
		}
		if rec.Month != "2024-05" {
			t.Errorf("record %d: month = %q, want %q", i, rec.Month, "2024-05")
		}
	}

	if records[0].ProductName != "Produk X" || records[0].TotalPrice != 5000 {
		t.Errorf("record 0 = %+v, want Produk X with total 5000", records[0])
	}
	if records[1].ProductName != "Produk Y" || records[1].TotalPrice != 4000 {
		t.Errorf("record 1 = %+v, want Produk Y with total 4000", records[1])
	}
}

func TestParse_NewHeaderOverwritesContext(t *testing.T) {
	grid := Grid{
		invoiceHeader(),
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"Produk X", "5", "1000", ""},
		{"2024-06-02", "", "Toko B", "Bandung"},
		{"Produk Y", "1", "500", ""},
	}

	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Customer != "Toko B" || records[1].City != "Bandung" {
		t.Errorf("record 1 carried stale context: %+v", records[1])
	}
	if records[1].Month != "2024-06" {
		t.Errorf("record 1 month = %q, want 2024-06", records[1].Month)
	}
}

func TestParse_LineItemBeforeHeaderDropped(t *testing.T) {
	grid := Grid{
		invoiceHeader(),
		{"Produk Awal", "3", "100", ""},
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"Produk X", "5", "1000", ""},
	}

	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ProductName != "Produk X" {
		t.Errorf("kept wrong record: %+v", records[0])
	}
}

func TestParse_CoercionFailureSkipsRowOnly(t *testing.T) {
	grid := Grid{
		invoiceHeader(),
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"Produk Rusak", "banyak", "1000", ""},
		{"Produk Mahal", "2", "n/a", ""},
		{"Produk X", "5", "1000", ""},
	}

	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ProductName != "Produk X" || records[0].Customer != "Toko A" {
		t.Errorf("carried state disturbed by skipped rows: %+v", records[0])
	}
}

func TestParse_EmptyProductSkipped(t *testing.T) {
	grid := Grid{
		invoiceHeader(),
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"  ", "5", "1000", ""},
		{"", "2", "500", ""},
	}

	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected 0 records, got %d", len(records))
	}
}

func TestParse_ProductNameKeptVerbatim(t *testing.T) {
	grid := Grid{
		invoiceHeader(),
		{"2024-05-01", "", "Toko A", "Jakarta"},
		{"Produk X  ", "5", "1000", ""},
	}

	records, err := Parse(grid, InvoiceExport, "test.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ProductName != "Produk X  " {
		t.Errorf("product name = %q, trailing whitespace must survive", records[0].ProductName)
	}
}

func TestParse_HeaderNotFound(t *testing.T) {
	grid := Grid{
		{"just", "some", "cells"},
		{"nothing", "usable", "here"},
	}

	_, err := Parse(grid, InvoiceExport, "broken.xlsx")
	if !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("expected ErrHeaderNotFound, got %v", err)
	}
}

func TestParse_MarkerWithoutRoleColumns(t *testing.T) {
	// A stray cell containing the marker is not a usable header row.
	grid := Grid{
		{"TGL NOTA laporan", "", ""},
		{"2024-05-01", "5", "1000"},
	}

	_, err := Parse(grid, InvoiceExport, "broken.xlsx")
	if !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("expected ErrHeaderNotFound, got %v", err)
	}
}

func TestParse_CleanCSV(t *testing.T) {
	csv := strings.Join([]string{
		"Tanggal,Customer,Kota,Nama Produk,Jumlah Terjual,Harga Satuan",
		"2024-05-01,Toko A,Jakarta,Produk X,5,1000",
		"2024-05-02,Toko B,Bandung,Produk Y,2,2000",
		"bukan tanggal,Toko C,Surabaya,Produk Z,1,100",
	}, "\n")

	grid, err := ReadCSVGrid(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSVGrid() error: %v", err)
	}

	records, err := Parse(grid, CleanCSV, "penjualan_bersih.csv")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (bad date dropped), got %d", len(records))
	}
	if records[0].TotalPrice != 5000 || records[0].Month != "2024-05" {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].Customer != "Toko B" || records[1].City != "Bandung" {
		t.Errorf("record 1 = %+v", records[1])
	}
}

func TestParse_QuantitySummaryCSV(t *testing.T) {
	csv := strings.Join([]string{
		"Laporan Stok",
		"Per 2024-06-30",
		"Nama Produk,Jumlah Terjual",
		"Produk X,15",
		"Produk Y,3",
		"Produk Kosong,",
	}, "\n")

	grid, err := ReadCSVGrid(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSVGrid() error: %v", err)
	}

	records, err := Parse(grid, QuantitySummaryCSV, "stok.csv")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ProductName != "Produk X" || records[0].Quantity != 15 {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[0].UnitPrice != 0 || !records[0].Date.IsZero() {
		t.Errorf("transaction-less variant must leave price and date zero: %+v", records[0])
	}
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"5", 5, true},
		{" 12 ", 12, true},
		{"5.0", 5, true},
		{"1,500", 1500, true},
		{"", 0, false},
		{"banyak", 0, false},
		{"12x", 0, false},
	}

	for _, tt := range tests {
		got, ok := coerceInt(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("coerceInt(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"2024-05-01", true},
		{"2024-05-01 10:30:00", true},
		{"05-01-24", true},
		{"", false},
		{"Produk X", false},
		{"BOXFILE MEDIUM BF112", false},
	}

	for _, tt := range tests {
		if _, ok := parseDate(tt.in, DefaultDateLayouts); ok != tt.wantOK {
			t.Errorf("parseDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}

func TestFormatByName(t *testing.T) {
	for _, name := range []string{"invoice-export", "clean-csv", "quantity-summary-csv"} {
		if _, ok := FormatByName(name); !ok {
			t.Errorf("FormatByName(%q) not found", name)
		}
	}
	if _, ok := FormatByName("bogus"); ok {
		t.Error("FormatByName(\"bogus\") should not resolve")
	}
}
