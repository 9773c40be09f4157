package util

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CSVReader reads from a CSV file.
type CSVReader interface {
	Read() (fields []string, err error)
}

// ReadDenseCSV reads a dense matrix from CSV, one row per record,
// all records of equal length, no header.
func ReadDenseCSV(r CSVReader) (*mat.Dense, error) {
	var data []float64
	rows, cols := 0, 0
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, errors.Errorf(
				"record %d has %d fields, want %d", rows, len(fields), cols)
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %#v: %w", field, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.New("empty CSV input")
	}
	return mat.NewDense(rows, cols, data), nil
}

// ReadVectorCSV reads a vector from CSV, one value per record.
func ReadVectorCSV(r CSVReader) ([]float64, error) {
	m, err := ReadDenseCSV(r)
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	if cols != 1 {
		return nil, errors.Errorf("want a single column, got %d", cols)
	}
	v := make([]float64, rows)
	mat.Col(v, 0, m)
	return v, nil
}
