package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Grid is the raw cell grid of one uploaded source: rows of loosely typed
// cells in their formatted string form, no schema assumed.
type Grid [][]string

// ReadXLSXGrid reads the first worksheet of an xlsx stream into a Grid.
func ReadXLSXGrid(r io.Reader) (Grid, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return Grid(rows), nil
}

// ReadCSVGrid reads a CSV stream into a Grid. Ragged rows are allowed; the
// parser deals with short rows the same way it deals with empty cells.
func ReadCSVGrid(r io.Reader) (Grid, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return Grid(rows), nil
}
