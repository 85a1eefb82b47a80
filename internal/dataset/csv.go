// Package dataset reads and writes the pipeline's on-disk artifacts.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Capstone-E1/climasense/internal/models"
)

var (
	// ErrMissingInput is returned when a stage's input artifact does not exist
	ErrMissingInput = errors.New("input file not found")
	// ErrMissingColumns is returned when a CSV lacks the temp/hum columns
	ErrMissingColumns = errors.New("missing required columns")
)

// Column names of the sensor CSV
const (
	ColumnTemp = "temp"
	ColumnHum  = "hum"
)

// Open opens an input artifact, mapping a missing file to ErrMissingInput
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// WriteSamples writes samples as a temp,hum CSV with a header row
func WriteSamples(w io.Writer, samples []models.Sample) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{ColumnTemp, ColumnHum}); err != nil {
		return err
	}
	for _, s := range samples {
		record := []string{
			strconv.FormatFloat(s.Temp, 'g', -1, 64),
			strconv.FormatFloat(s.Hum, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadSamples parses a CSV with at least temp and hum columns, in any order.
// Other columns (an index, labels) are ignored.
func ReadSamples(r io.Reader) ([]models.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	tempIdx, humIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColumnTemp:
			tempIdx = i
		case ColumnHum:
			humIdx = i
		}
	}
	if tempIdx < 0 || humIdx < 0 {
		return nil, fmt.Errorf("%w: need %q and %q, got %v", ErrMissingColumns, ColumnTemp, ColumnHum, header)
	}

	var samples []models.Sample
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(record) <= max(tempIdx, humIdx) {
			return nil, fmt.Errorf("row %d: expected at least %d fields, got %d", row, max(tempIdx, humIdx)+1, len(record))
		}

		temp, err := parseValue(record[tempIdx], ColumnTemp, row)
		if err != nil {
			return nil, err
		}
		hum, err := parseValue(record[humIdx], ColumnHum, row)
		if err != nil {
			return nil, err
		}
		samples = append(samples, models.Sample{Temp: temp, Hum: hum})
	}

	return samples, nil
}

// parseValue parses one finite numeric cell
func parseValue(field, column string, row int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("row %d: invalid %s value %q", row, column, field)
	}
	return v, nil
}

// LoadSamples reads the sensor CSV at path
func LoadSamples(path string) ([]models.Sample, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadSamples(f)
}

// SaveSamples writes the sensor CSV to path
func SaveSamples(path string, samples []models.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteSamples(f, samples); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
