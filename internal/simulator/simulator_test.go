package simulator

import (
	"math"
	"testing"
)

func TestGenerate_Counts(t *testing.T) {
	samples, labels := New(DefaultConfig()).Labeled()

	if len(samples) != 6200 {
		t.Fatalf("Expected 6200 samples, got %d", len(samples))
	}
	if len(labels) != len(samples) {
		t.Fatalf("Expected one label per sample, got %d", len(labels))
	}

	anomalies := 0
	for i, anomalous := range labels {
		if anomalous {
			anomalies++
			if i < 6000 {
				t.Fatalf("Anomaly label inside the normal block at %d", i)
			}
		}
	}
	if anomalies != 200 {
		t.Errorf("Expected 200 anomalies, got %d", anomalies)
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a := New(DefaultConfig()).Generate()
	b := New(DefaultConfig()).Generate()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Sample %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}

	cfg := DefaultConfig()
	cfg.Seed = 99
	c := New(cfg).Generate()
	if c[0] == a[0] && c[1] == a[1] {
		t.Error("Expected a different seed to produce a different series")
	}
}

func TestGenerate_NormalBlockRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnomalySamples = 0
	samples := New(cfg).Generate()

	for i, s := range samples {
		if math.IsNaN(s.Temp) || math.IsNaN(s.Hum) {
			t.Fatalf("NaN at sample %d", i)
		}
		// signal envelope plus a wide noise margin
		if s.Temp < 26 || s.Temp > 37 {
			t.Errorf("Temperature out of expected band at %d: %v", i, s.Temp)
		}
		if s.Hum < 33 || s.Hum > 67 {
			t.Errorf("Humidity out of expected band at %d: %v", i, s.Hum)
		}
	}
}

func TestLinspace(t *testing.T) {
	tests := []struct {
		n        int
		expected []float64
	}{
		{n: 0, expected: []float64{}},
		{n: 1, expected: []float64{0}},
		{n: 5, expected: []float64{0, 1, 2, 3, 4}},
	}

	for _, tt := range tests {
		got := linspace(0, 4, tt.n)
		if len(got) != len(tt.expected) {
			t.Fatalf("n=%d: expected %d values, got %d", tt.n, len(tt.expected), len(got))
		}
		for i := range got {
			if math.Abs(got[i]-tt.expected[i]) > 1e-12 {
				t.Errorf("n=%d: value %d expected %v, got %v", tt.n, i, tt.expected[i], got[i])
			}
		}
	}
}
