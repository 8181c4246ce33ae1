package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

// ErrHeaderNotFound means the grid contains no usable header row for the
// format: either the marker label never appears, or the row it appears in is
// missing the format's other column labels. Sources failing this way
// contribute zero records; the caller reports it and moves on.
var ErrHeaderNotFound = errors.New("header row not found")

// Parse walks a raw grid and emits one SalesRecord per valid product line.
//
// For multi-block formats the walk carries the current transaction context
// (date, customer, city) forward: a data row whose marker-column cell parses
// as a date is a transaction header and overwrites the context, any other
// row is a line item stamped with the carried context. Line items seen
// before the first header, and rows whose quantity or unit price fail
// numeric coercion, are dropped silently.
func Parse(grid Grid, format Format, source string) ([]models.SalesRecord, error) {
	headerIdx, header, err := findHeader(grid, format)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}

	if format.HasTransactionHeaders {
		return parseBlocks(grid[headerIdx+1:], header, format, source)
	}
	return parseFlat(grid[headerIdx+1:], header, format, source)
}

// findHeader locates the first row at or after SkipRows containing the
// marker label and returns its index together with the row itself.
func findHeader(grid Grid, format Format) (int, []string, error) {
	for i := format.SkipRows; i < len(grid); i++ {
		for _, cell := range grid[i] {
			if strings.Contains(cell, format.HeaderMarker) {
				return i, grid[i], nil
			}
		}
	}
	return 0, nil, fmt.Errorf("marker %q: %w", format.HeaderMarker, ErrHeaderNotFound)
}

// columnIndex resolves a header label to its position, preferring an exact
// trimmed match over a containment match.
func columnIndex(header []string, label string) (int, bool) {
	for i, cell := range header {
		if strings.TrimSpace(cell) == label {
			return i, true
		}
	}
	for i, cell := range header {
		if strings.Contains(cell, label) {
			return i, false
		}
	}
	return -1, false
}

func requireColumn(header []string, label string) (int, error) {
	if label == "" {
		return -1, nil
	}
	if i, _ := columnIndex(header, label); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("column %q: %w", label, ErrHeaderNotFound)
}

// parseBlocks handles the multi-block layout. Column positions come from the
// header row once; line-item rows reuse them for different fields (see
// Format).
func parseBlocks(rows Grid, header []string, format Format, source string) ([]models.SalesRecord, error) {
	markerPos, err := requireColumn(header, format.HeaderMarker)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}
	customerPos, err := requireColumn(header, format.CustomerColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}
	cityPos, err := requireColumn(header, format.CityColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}
	quantityPos, err := requireColumn(header, format.QuantityColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}
	unitPricePos, err := requireColumn(header, format.UnitPriceColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}

	layouts := format.dateLayouts()

	var (
		records     []models.SalesRecord
		currentDate time.Time
		currentCust string
		currentCity string
		haveContext bool
	)

	for _, row := range rows {
		marker := cellAt(row, markerPos)

		if date, ok := parseDate(marker, layouts); ok {
			currentDate = date
			currentCust = strings.TrimSpace(cellAt(row, customerPos))
			currentCity = strings.TrimSpace(cellAt(row, cityPos))
			haveContext = true
			continue
		}

		// Line items before the first transaction header have no context to
		// inherit and are dropped.
		if !haveContext {
			continue
		}

		// Product names stay verbatim: the category table is whitespace
		// sensitive and trimming here would silently change classifications.
		productName := marker
		if strings.TrimSpace(productName) == "" {
			continue
		}

		quantity, ok := coerceInt(cellAt(row, quantityPos))
		if !ok {
			continue
		}
		unitPrice, ok := coerceInt(cellAt(row, unitPricePos))
		if !ok {
			continue
		}

		records = append(records, models.SalesRecord{
			Date:        currentDate,
			Customer:    currentCust,
			City:        currentCity,
			ProductName: productName,
			Quantity:    int(quantity),
			UnitPrice:   unitPrice,
			TotalPrice:  unitPrice * quantity,
			Month:       currentDate.Format(models.MonthKey),
			Source:      source,
		})
	}

	return records, nil
}

// parseFlat handles layouts where every data row is a complete record.
func parseFlat(rows Grid, header []string, format Format, source string) ([]models.SalesRecord, error) {
	productPos, err := requireColumn(header, format.ProductColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}
	quantityPos, err := requireColumn(header, format.QuantityColumn)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", source, format.Name, err)
	}

	// Optional roles degrade to zero values rather than failing the source.
	datePos, _ := columnIndex(header, orMissing(format.DateColumn))
	customerPos, _ := columnIndex(header, orMissing(format.CustomerColumn))
	cityPos, _ := columnIndex(header, orMissing(format.CityColumn))
	unitPricePos, _ := columnIndex(header, orMissing(format.UnitPriceColumn))

	var records []models.SalesRecord
	layouts := format.dateLayouts()

	for _, row := range rows {
		productName := cellAt(row, productPos)
		if strings.TrimSpace(productName) == "" {
			continue
		}

		quantity, ok := coerceInt(cellAt(row, quantityPos))
		if !ok {
			continue
		}

		rec := models.SalesRecord{
			ProductName: productName,
			Quantity:    int(quantity),
			Source:      source,
		}

		if datePos >= 0 {
			date, ok := parseDate(cellAt(row, datePos), layouts)
			if !ok {
				continue
			}
			rec.Date = date
			rec.Month = date.Format(models.MonthKey)
		}
		if customerPos >= 0 {
			rec.Customer = strings.TrimSpace(cellAt(row, customerPos))
		}
		if cityPos >= 0 {
			rec.City = strings.TrimSpace(cellAt(row, cityPos))
		}
		if unitPricePos >= 0 {
			unitPrice, ok := coerceInt(cellAt(row, unitPricePos))
			if !ok {
				continue
			}
			rec.UnitPrice = unitPrice
			rec.TotalPrice = unitPrice * quantity
		}

		records = append(records, rec)
	}

	return records, nil
}

func orMissing(label string) string {
	if label == "" {
		// A label no header contains, so columnIndex reports -1.
		return "\x00"
	}
	return label
}

func cellAt(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return row[pos]
}

func parseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceInt interprets a cell as an integer amount. Spreadsheet exports
// render whole numbers as "5", "5.0" or "5,000"; everything else fails
// coercion and the row is skipped.
func coerceInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}
