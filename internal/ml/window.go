package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned when a series is shorter than one window
var ErrInsufficientData = errors.New("not enough data for the chosen window size")

// MakeWindows slides a window of length samples over series with stride 1.
// Each row of the result is one window flattened as [c0(t), c1(t), c0(t+1), ...].
// Trailing samples that cannot fill a whole window are excluded, never padded.
func MakeWindows(series [][]float64, length int) (*mat.Dense, error) {
	if length <= 0 {
		return nil, fmt.Errorf("window length must be positive, got %d", length)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}

	channels := len(series[0])
	if channels == 0 {
		return nil, fmt.Errorf("samples have no channels")
	}
	for i, row := range series {
		if len(row) != channels {
			return nil, fmt.Errorf("sample %d has %d channels, expected %d", i, len(row), channels)
		}
	}

	n := len(series) - length + 1
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d samples, window length %d", ErrInsufficientData, len(series), length)
	}

	width := length * channels
	windows := mat.NewDense(n, width, nil)
	for i := 0; i < n; i++ {
		row := windows.RawRowView(i)
		for j := 0; j < length; j++ {
			copy(row[j*channels:(j+1)*channels], series[i+j])
		}
	}

	return windows, nil
}

// SplitWindows shuffles rows with a fixed seed and holds out
// ceil(rows*valFraction) of them for validation.
func SplitWindows(windows *mat.Dense, valFraction float64, seed uint64) (train, val *mat.Dense, err error) {
	rows, cols := windows.Dims()
	if valFraction <= 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction must be in (0, 1), got %v", valFraction)
	}

	valRows := int(math.Ceil(float64(rows) * valFraction))
	trainRows := rows - valRows
	if valRows < 1 || trainRows < 1 {
		return nil, nil, fmt.Errorf("%w: cannot split %d windows", ErrInsufficientData, rows)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(rows)

	val = mat.NewDense(valRows, cols, nil)
	train = mat.NewDense(trainRows, cols, nil)
	for i, src := range perm {
		if i < valRows {
			val.SetRow(i, windows.RawRowView(src))
		} else {
			train.SetRow(i-valRows, windows.RawRowView(src))
		}
	}

	return train, val, nil
}

// FirstRows returns a copy of at most n leading rows
func FirstRows(m *mat.Dense, n int) *mat.Dense {
	rows, cols := m.Dims()
	if n > rows {
		n = rows
	}
	if n <= 0 {
		return nil
	}

	out := mat.NewDense(n, cols, nil)
	out.Copy(m.Slice(0, n, 0, cols))
	return out
}

// Rows exposes the rows of m as slices that share its backing storage
func Rows(m *mat.Dense) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = m.RawRowView(i)
	}
	return out
}
