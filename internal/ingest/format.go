package ingest

// Format describes one input layout. The POS tool behind the invoice export
// and the flat CSV reports share a parser; everything that differs between
// them lives here, not in separate code paths.
//
// Position-based field reuse: on formats with transaction headers the data
// rows recycle the header row's column positions for different fields. The
// column labelled HeaderMarker holds the transaction date on header rows but
// the product name on line-item rows; QuantityColumn and UnitPriceColumn
// name header labels whose positions hold quantity and unit price on item
// rows, whatever those labels say. This is a convention of the source
// format, not a bug to fix.
type Format struct {
	Name string

	// HeaderMarker is the literal column label that locates the header row:
	// the first row containing it (after SkipRows) is the header, everything
	// below is data.
	HeaderMarker string

	// SkipRows drops a fixed number of leading rows before the header search
	// starts. The flat report variants carry a title block above the header.
	SkipRows int

	// HasTransactionHeaders marks the multi-block layout: date/customer/city
	// appear once per transaction and carry forward over the line items that
	// follow.
	HasTransactionHeaders bool

	// Labels resolved against the located header row.
	CustomerColumn  string
	CityColumn      string
	QuantityColumn  string
	UnitPriceColumn string

	// Flat formats only: every data row is a complete record and these
	// labels address its fields directly.
	DateColumn    string
	ProductColumn string

	// DateLayouts are tried in order when interpreting date cells. Empty
	// means DefaultDateLayouts.
	DateLayouts []string
}

// DefaultDateLayouts covers the date renderings seen in the POS exports:
// ISO dates, spreadsheet-formatted short dates, and datetime cells.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06",
	"02/01/2006",
	"2/1/2006 15:04",
}

// InvoiceExport is the multi-block xlsx layout produced by the POS reporting
// tool. "KD LGN" and "NAMA CUSTOMER" are the labels whose positions hold
// quantity and unit price on line-item rows.
var InvoiceExport = Format{
	Name:                  "invoice-export",
	HeaderMarker:          "TGL NOTA",
	HasTransactionHeaders: true,
	CustomerColumn:        "NAMA CUSTOMER",
	CityColumn:            "KOTA",
	QuantityColumn:        "KD LGN",
	UnitPriceColumn:       "NAMA CUSTOMER",
}

// CleanCSV is the flat, already-normalized layout of the on-disk seed file.
var CleanCSV = Format{
	Name:            "clean-csv",
	HeaderMarker:    "Tanggal",
	DateColumn:      "Tanggal",
	CustomerColumn:  "Customer",
	CityColumn:      "Kota",
	ProductColumn:   "Nama Produk",
	QuantityColumn:  "Jumlah Terjual",
	UnitPriceColumn: "Harga Satuan",
}

// QuantitySummaryCSV is the transaction-less stock report: a title block,
// then product name and total quantity only.
var QuantitySummaryCSV = Format{
	Name:           "quantity-summary-csv",
	HeaderMarker:   "Nama Produk",
	SkipRows:       2,
	ProductColumn:  "Nama Produk",
	QuantityColumn: "Jumlah Terjual",
}

// FormatByName resolves a format identifier from config or an upload
// request to its descriptor.
func FormatByName(name string) (Format, bool) {
	switch name {
	case InvoiceExport.Name:
		return InvoiceExport, true
	case CleanCSV.Name:
		return CleanCSV, true
	case QuantitySummaryCSV.Name:
		return QuantitySummaryCSV, true
	}
	return Format{}, false
}

func (f Format) dateLayouts() []string {
	if len(f.DateLayouts) > 0 {
		return f.DateLayouts
	}
	return DefaultDateLayouts
}
