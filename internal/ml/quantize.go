package ml

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidScale is returned when quantization parameters cannot define a mapping
var ErrInvalidScale = errors.New("quantization scale must be finite and positive")

// Integer ranges of the supported tensor types
const (
	Uint8Min = 0
	Uint8Max = 255
	Int8Min  = -128
	Int8Max  = 127
)

// QuantParams is the affine map real = (q - ZeroPoint) * Scale, clamped to [QMin, QMax]
type QuantParams struct {
	Scale     float64 `json:"scale"`
	ZeroPoint int32   `json:"zero_point"`
	QMin      int32   `json:"qmin"`
	QMax      int32   `json:"qmax"`
}

// Uint8Params builds unsigned 8-bit parameters
func Uint8Params(scale float64, zeroPoint int32) QuantParams {
	return QuantParams{Scale: scale, ZeroPoint: zeroPoint, QMin: Uint8Min, QMax: Uint8Max}
}

// Int8Params builds signed 8-bit parameters
func Int8Params(scale float64, zeroPoint int32) QuantParams {
	return QuantParams{Scale: scale, ZeroPoint: zeroPoint, QMin: Int8Min, QMax: Int8Max}
}

// Validate fails if the parameters do not describe a usable mapping
func (p QuantParams) Validate() error {
	if p.Scale <= 0 || math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidScale, p.Scale)
	}
	if p.QMin >= p.QMax {
		return fmt.Errorf("invalid integer range [%d, %d]", p.QMin, p.QMax)
	}
	if p.ZeroPoint < p.QMin || p.ZeroPoint > p.QMax {
		return fmt.Errorf("zero point %d outside integer range [%d, %d]", p.ZeroPoint, p.QMin, p.QMax)
	}
	return nil
}

// RealMin is the smallest real value the parameters can represent
func (p QuantParams) RealMin() float64 {
	return float64(p.QMin-p.ZeroPoint) * p.Scale
}

// RealMax is the largest real value the parameters can represent
func (p QuantParams) RealMax() float64 {
	return float64(p.QMax-p.ZeroPoint) * p.Scale
}

// Quantize maps a real value onto the integer grid
func (p QuantParams) Quantize(v float64) (int32, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return p.quantize(v), nil
}

// Dequantize maps an integer back to its real value
func (p QuantParams) Dequantize(q int32) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return p.dequantize(q), nil
}

// QuantizeSlice quantizes every element of values
func (p QuantParams) QuantizeSlice(values []float64) ([]int32, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = p.quantize(v)
	}
	return out, nil
}

// DequantizeSlice dequantizes every element of values
func (p QuantParams) DequantizeSlice(values []int32) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, q := range values {
		out[i] = p.dequantize(q)
	}
	return out, nil
}

// quantize assumes Validate has passed.
// Round half to even, matching numpy's np.round.
func (p QuantParams) quantize(v float64) int32 {
	if math.IsNaN(v) {
		return p.ZeroPoint
	}
	q := math.RoundToEven(v/p.Scale + float64(p.ZeroPoint))
	if q < float64(p.QMin) {
		return p.QMin
	}
	if q > float64(p.QMax) {
		return p.QMax
	}
	return int32(q)
}

func (p QuantParams) dequantize(q int32) float64 {
	return float64(q-p.ZeroPoint) * p.Scale
}

// CalibrateUint8 derives asymmetric uint8 parameters covering values.
// The range is widened to include zero so that 0.0 is exactly representable.
func CalibrateUint8(values []float64) (QuantParams, error) {
	if len(values) == 0 {
		return QuantParams{}, fmt.Errorf("%w: no calibration values", ErrInvalidScale)
	}

	lo, hi := 0.0, 0.0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return QuantParams{}, fmt.Errorf("non-finite calibration value %v", v)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return QuantParams{}, fmt.Errorf("%w: calibration range is empty", ErrInvalidScale)
	}

	scale := (hi - lo) / float64(Uint8Max-Uint8Min)
	zp := math.Round(float64(Uint8Min) - lo/scale)
	zp = math.Max(Uint8Min, math.Min(Uint8Max, zp))

	return Uint8Params(scale, int32(zp)), nil
}

// CalibrateInt8Symmetric derives symmetric int8 parameters (zero point 0),
// the layout used for weight tensors.
func CalibrateInt8Symmetric(values []float64) (QuantParams, error) {
	maxAbs := 0.0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return QuantParams{}, fmt.Errorf("non-finite weight %v", v)
		}
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	if maxAbs == 0 {
		return QuantParams{}, fmt.Errorf("%w: all weights are zero", ErrInvalidScale)
	}

	return Int8Params(maxAbs/float64(Int8Max), 0), nil
}
