package ml

import (
	"errors"
	"testing"

	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/simulator"
)

func makeSeries(n int) [][]float64 {
	series := make([][]float64, n)
	for i := range series {
		series[i] = []float64{float64(i), float64(100 + i)}
	}
	return series
}

func TestMakeWindows_CountAndLayout(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		length int
	}{
		{name: "Window equals series", n: 10, length: 10},
		{name: "Default window", n: 25, length: 10},
		{name: "Unit window", n: 5, length: 1},
		{name: "Long series", n: 300, length: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := makeSeries(tt.n)
			windows, err := MakeWindows(series, tt.length)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			rows, cols := windows.Dims()
			if rows != tt.n-tt.length+1 {
				t.Errorf("Expected %d windows, got %d", tt.n-tt.length+1, rows)
			}
			if cols != tt.length*2 {
				t.Errorf("Expected window width %d, got %d", tt.length*2, cols)
			}

			for i := 0; i < rows; i++ {
				row := windows.RawRowView(i)
				if row[0] != series[i][0] || row[1] != series[i][1] {
					t.Fatalf("Window %d does not start with sample %d: %v", i, i, row[:2])
				}
				last := row[cols-2:]
				if last[0] != series[i+tt.length-1][0] || last[1] != series[i+tt.length-1][1] {
					t.Fatalf("Window %d does not end with sample %d: %v", i, i+tt.length-1, last)
				}
			}
		})
	}
}

func TestMakeWindows_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1, 9} {
		_, err := MakeWindows(makeSeries(n), 10)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
}

func TestMakeWindows_InvalidInput(t *testing.T) {
	if _, err := MakeWindows(makeSeries(5), 0); err == nil {
		t.Error("Expected error for zero window length")
	}

	ragged := [][]float64{{1, 2}, {3}, {4, 5}}
	if _, err := MakeWindows(ragged, 2); err == nil {
		t.Error("Expected error for ragged series")
	}

	if _, err := MakeWindows([][]float64{{}, {}}, 1); err == nil {
		t.Error("Expected error for zero channels")
	}
}

func TestMakeWindows_SimulatedSeries(t *testing.T) {
	sim := simulator.New(simulator.DefaultConfig())
	samples := sim.Generate()
	if len(samples) != 6200 {
		t.Fatalf("Expected 6200 simulated samples, got %d", len(samples))
	}

	windows, err := MakeWindows(models.SamplesToSeries(samples), 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rows, cols := windows.Dims()
	if rows != 6191 || cols != 20 {
		t.Errorf("Expected 6191x20 windows, got %dx%d", rows, cols)
	}
}

func TestSplitWindows(t *testing.T) {
	windows, err := MakeWindows(makeSeries(109), 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	train, val, err := SplitWindows(windows, 0.2, 42)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	trainRows, _ := train.Dims()
	valRows, _ := val.Dims()
	if valRows != 20 || trainRows != 80 {
		t.Errorf("Expected 80/20 split, got %d/%d", trainRows, valRows)
	}

	// Every window appears exactly once across both sets.
	seen := make(map[float64]int)
	for _, row := range append(Rows(train), Rows(val)...) {
		seen[row[0]]++
	}
	if len(seen) != 100 {
		t.Errorf("Expected 100 distinct windows, got %d", len(seen))
	}

	again, _, _ := SplitWindows(windows, 0.2, 42)
	if again.At(0, 0) != train.At(0, 0) || again.At(79, 0) != train.At(79, 0) {
		t.Error("Expected the same seed to produce the same split")
	}
}

func TestSplitWindows_Invalid(t *testing.T) {
	windows, _ := MakeWindows(makeSeries(10), 10)

	if _, _, err := SplitWindows(windows, 0.2, 1); err == nil {
		t.Error("Expected error when a single window cannot be split")
	}
	if _, _, err := SplitWindows(windows, 1.5, 1); err == nil {
		t.Error("Expected error for validation fraction above 1")
	}
}

func TestFirstRows(t *testing.T) {
	windows, _ := MakeWindows(makeSeries(20), 5)

	head := FirstRows(windows, 3)
	rows, cols := head.Dims()
	if rows != 3 || cols != 10 {
		t.Fatalf("Expected 3x10, got %dx%d", rows, cols)
	}
	if head.At(2, 0) != 2 {
		t.Errorf("Expected third row to start at 2, got %v", head.At(2, 0))
	}

	all := FirstRows(windows, 1000)
	if r, _ := all.Dims(); r != 16 {
		t.Errorf("Expected all 16 rows, got %d", r)
	}
}
