package ml

import (
	"errors"
	"math"
	"testing"
)

func TestQuantize_RoundTrip(t *testing.T) {
	params := []QuantParams{
		Uint8Params(0.1, 0),
		Uint8Params(0.25, 128),
		Uint8Params(0.0123, 37),
		Int8Params(0.05, 0),
	}

	for _, p := range params {
		lo, hi := p.RealMin(), p.RealMax()
		for i := 0; i <= 100; i++ {
			v := lo + (hi-lo)*float64(i)/100
			q, err := p.Quantize(v)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			back, err := p.Dequantize(q)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if math.Abs(back-v) > p.Scale {
				t.Errorf("scale=%v zp=%d: round trip of %v gave %v", p.Scale, p.ZeroPoint, v, back)
			}
		}
	}
}

func TestQuantize_Clamp(t *testing.T) {
	tests := []struct {
		name     string
		params   QuantParams
		value    float64
		expected int32
	}{
		{name: "uint8 below range", params: Uint8Params(0.1, 0), value: -5, expected: 0},
		{name: "uint8 above range", params: Uint8Params(0.1, 0), value: 1000, expected: 255},
		{name: "uint8 zero point", params: Uint8Params(0.5, 10), value: 0, expected: 10},
		{name: "int8 below range", params: Int8Params(0.01, 0), value: -100, expected: -128},
		{name: "int8 above range", params: Int8Params(0.01, 0), value: 100, expected: 127},
		{name: "half rounds to even down", params: Uint8Params(1, 0), value: 2.5, expected: 2},
		{name: "half rounds to even up", params: Uint8Params(1, 0), value: 3.5, expected: 4},
		{name: "NaN maps to zero point", params: Uint8Params(1, 7), value: math.NaN(), expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.params.Quantize(tt.value)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if q != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, q)
			}
		})
	}
}

func TestQuantize_InvalidScale(t *testing.T) {
	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		p := Uint8Params(scale, 0)
		if _, err := p.Quantize(1); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("scale=%v: expected ErrInvalidScale from Quantize, got %v", scale, err)
		}
		if _, err := p.Dequantize(1); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("scale=%v: expected ErrInvalidScale from Dequantize, got %v", scale, err)
		}
		if _, err := p.QuantizeSlice([]float64{1}); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("scale=%v: expected ErrInvalidScale from QuantizeSlice, got %v", scale, err)
		}
	}
}

func TestQuantParams_Validate(t *testing.T) {
	if err := (QuantParams{Scale: 1, ZeroPoint: 300, QMin: 0, QMax: 255}).Validate(); err == nil {
		t.Error("Expected error for zero point outside range")
	}
	if err := (QuantParams{Scale: 1, QMin: 5, QMax: 5}).Validate(); err == nil {
		t.Error("Expected error for empty integer range")
	}
	if err := Uint8Params(0.2, 12).Validate(); err != nil {
		t.Errorf("Expected valid params, got %v", err)
	}
}

func TestCalibrateUint8(t *testing.T) {
	values := []float64{20, 25, 30, 45.5, 80}
	p, err := CalibrateUint8(values)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if p.ZeroPoint != 0 {
		t.Errorf("Expected zero point 0 for a positive range, got %d", p.ZeroPoint)
	}
	if math.Abs(p.Scale-80.0/255) > 1e-12 {
		t.Errorf("Expected scale %v, got %v", 80.0/255, p.Scale)
	}
	for _, v := range values {
		q, _ := p.Quantize(v)
		back, _ := p.Dequantize(q)
		if math.Abs(back-v) > p.Scale {
			t.Errorf("Value %v not representable: got %v", v, back)
		}
	}

	mixed, err := CalibrateUint8([]float64{-1, 3})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if zero, _ := mixed.Dequantize(mixed.ZeroPoint); zero != 0 {
		t.Errorf("Expected zero to be exactly representable, got %v", zero)
	}

	if _, err := CalibrateUint8(nil); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("Expected ErrInvalidScale for empty input, got %v", err)
	}
	if _, err := CalibrateUint8([]float64{0, 0}); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("Expected ErrInvalidScale for empty range, got %v", err)
	}
	if _, err := CalibrateUint8([]float64{1, math.NaN()}); err == nil {
		t.Error("Expected error for NaN calibration value")
	}
}

func TestCalibrateInt8Symmetric(t *testing.T) {
	p, err := CalibrateInt8Symmetric([]float64{-0.5, 0.2, 0.25})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.ZeroPoint != 0 {
		t.Errorf("Expected zero point 0, got %d", p.ZeroPoint)
	}
	if q, _ := p.Quantize(-0.5); q != -127 {
		t.Errorf("Expected -0.5 to map to -127, got %d", q)
	}

	if _, err := CalibrateInt8Symmetric([]float64{0, 0}); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("Expected ErrInvalidScale for all-zero weights, got %v", err)
	}
}
