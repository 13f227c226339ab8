package oedometer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"

	"sigmap/internal/models"
)

// ReadCSV parses a comma separated test log. The first row is a header and
// the columns are, in order: vertical effective stress, axial strain and void
// ratio. Extra columns are ignored and blank rows skipped.
func ReadCSV(r io.Reader) ([]models.TestRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return parseRows(rows)
}

// ReadXLSX parses the first sheet of a workbook with the same layout as ReadCSV
func ReadXLSX(r io.Reader) ([]models.TestRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %q: %w", sheet, err)
	}
	return parseRows(rows)
}

// Load reads a test log from disk, choosing the parser by file extension
func Load(path string) ([]models.TestRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening test data: %w", err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		return ReadCSV(file)
	case ".xlsx", ".xlsm":
		return ReadXLSX(file)
	default:
		return nil, fmt.Errorf("unsupported test data format %q", ext)
	}
}

func parseRows(rows [][]string) ([]models.TestRecord, error) {
	if len(rows) < 2 {
		return nil, errors.New("test data has no rows after the header")
	}

	records := make([]models.TestRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: want 3 columns, got %d", i+2, len(row))
		}
		var vals [3]float64
		for j := range vals {
			v, err := cast.ToFloat64E(strings.TrimSpace(row[j]))
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+2, j+1, err)
			}
			vals[j] = v
		}
		records = append(records, models.TestRecord{Stress: vals[0], Strain: vals[1], VoidRatio: vals[2]})
	}
	if len(records) == 0 {
		return nil, errors.New("test data has no rows after the header")
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
