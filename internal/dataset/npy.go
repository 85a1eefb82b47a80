package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// WriteMatrix writes m as a 2-D float64 .npy array
func WriteMatrix(w io.Writer, m *mat.Dense) error {
	return npyio.Write(w, m)
}

// ReadMatrix reads a 2-D float64 .npy array
func ReadMatrix(r io.Reader) (*mat.Dense, error) {
	var m mat.Dense
	if err := npyio.Read(r, &m); err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	return &m, nil
}

// WriteVector writes values as a 1-D float64 .npy array
func WriteVector(w io.Writer, values []float64) error {
	return npyio.Write(w, values)
}

// ReadVector reads a 1-D float64 .npy array
func ReadVector(r io.Reader) ([]float64, error) {
	var values []float64
	if err := npyio.Read(r, &values); err != nil {
		return nil, fmt.Errorf("failed to read vector: %w", err)
	}
	return values, nil
}

// SaveMatrix writes m to path
func SaveMatrix(path string, m *mat.Dense) error {
	return saveFile(path, func(w io.Writer) error { return WriteMatrix(w, m) })
}

// LoadMatrix reads a matrix from path
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SaveVector writes values to path
func SaveVector(path string, values []float64) error {
	return saveFile(path, func(w io.Writer) error { return WriteVector(w, values) })
}

// LoadVector reads a vector from path
func LoadVector(path string) ([]float64, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := ReadVector(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
