package ml

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrRepresentativeShape is returned when calibration windows do not match the model input
	ErrRepresentativeShape = errors.New("representative dataset shape mismatch")
	// ErrConversion wraps any failure while building the quantized model
	ErrConversion = errors.New("quantized conversion failed")
	// ErrBadModelFile is returned for truncated or foreign quantized model files
	ErrBadModelFile = errors.New("not a quantized autoencoder file")
)

var quantizedMagic = [4]byte{'A', 'E', 'Q', '8'}

const (
	quantizedVersion = 1
	maxTensorDim     = 1 << 16
)

// TensorDetails describes a model input or output tensor
type TensorDetails struct {
	Name  string      `json:"name"`
	Shape []int       `json:"shape"`
	Type  string      `json:"type"`
	Quant QuantParams `json:"quantization"`
}

// QuantizedModel is the full-integer form of a LinearAutoencoder: uint8
// activations, int8 weights and float32 biases, requantized after every layer.
type QuantizedModel struct {
	inputDim  int
	latentDim int

	input  QuantParams
	latent QuantParams
	output QuantParams

	encWeightParams QuantParams
	encWeights      []int8 // inputDim x latentDim, row-major
	encBias         []float32

	decWeightParams QuantParams
	decWeights      []int8 // latentDim x inputDim, row-major
	decBias         []float32
}

// Convert quantizes model, calibrating activation ranges on at most
// maxSamples representative windows (all of them if maxSamples <= 0).
func Convert(model *LinearAutoencoder, rep *mat.Dense, maxSamples int) (*QuantizedModel, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", ErrConversion)
	}
	if rep == nil {
		return nil, fmt.Errorf("%w: no representative windows", ErrRepresentativeShape)
	}

	rows, cols := rep.Dims()
	if rows == 0 || cols != model.InputDim() {
		return nil, fmt.Errorf("%w: got (%d, %d), expected (N, %d)", ErrRepresentativeShape, rows, cols, model.InputDim())
	}
	if maxSamples > 0 && rows > maxSamples {
		rows = maxSamples
	}

	inputDim, latentDim := model.InputDim(), model.LatentDim()
	inputs := make([]float64, 0, rows*inputDim)
	latents := make([]float64, 0, rows*latentDim)
	outputs := make([]float64, 0, rows*inputDim)
	for i := 0; i < rows; i++ {
		window := rep.RawRowView(i)
		z, err := model.Encode(window)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		y, err := model.Decode(z)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		inputs = append(inputs, window...)
		latents = append(latents, z...)
		outputs = append(outputs, y...)
	}

	q := &QuantizedModel{inputDim: inputDim, latentDim: latentDim}

	var err error
	if q.input, err = CalibrateUint8(inputs); err != nil {
		return nil, fmt.Errorf("%w: input tensor: %v", ErrConversion, err)
	}
	if q.latent, err = CalibrateUint8(latents); err != nil {
		return nil, fmt.Errorf("%w: latent tensor: %v", ErrConversion, err)
	}
	if q.output, err = CalibrateUint8(outputs); err != nil {
		return nil, fmt.Errorf("%w: output tensor: %v", ErrConversion, err)
	}

	weights := mat.DenseCopyOf(model.weights).RawMatrix().Data
	if q.encWeightParams, err = CalibrateInt8Symmetric(weights); err != nil {
		return nil, fmt.Errorf("%w: encoder weights: %v", ErrConversion, err)
	}
	q.decWeightParams = q.encWeightParams

	q.encWeights = make([]int8, inputDim*latentDim)
	q.decWeights = make([]int8, latentDim*inputDim)
	for i := 0; i < inputDim; i++ {
		for j := 0; j < latentDim; j++ {
			w := int8(q.encWeightParams.quantize(model.weights.At(i, j)))
			q.encWeights[i*latentDim+j] = w
			q.decWeights[j*inputDim+i] = w
		}
	}

	q.encBias = toFloat32(model.encoderBias())
	q.decBias = toFloat32(model.mean)

	return q, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// InputDim is the flattened window length the model accepts
func (q *QuantizedModel) InputDim() int {
	return q.inputDim
}

// InputDetails describes the uint8 input tensor
func (q *QuantizedModel) InputDetails() TensorDetails {
	return TensorDetails{Name: "input_flat", Shape: []int{1, q.inputDim}, Type: "uint8", Quant: q.input}
}

// OutputDetails describes the uint8 output tensor
func (q *QuantizedModel) OutputDetails() TensorDetails {
	return TensorDetails{Name: "reconstruct", Shape: []int{1, q.inputDim}, Type: "uint8", Quant: q.output}
}

// Invoke runs integer inference: uint8 window in, uint8 reconstruction out
func (q *QuantizedModel) Invoke(input []uint8) ([]uint8, error) {
	if len(input) != q.inputDim {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), q.inputDim)
	}

	latent := denseLayer(input, q.input, q.encWeights, q.encWeightParams, q.encBias, q.latentDim, q.latent)
	return denseLayer(latent, q.latent, q.decWeights, q.decWeightParams, q.decBias, q.inputDim, q.output), nil
}

// denseLayer accumulates in int32 on the integer grid, rescales, adds the
// bias and requantizes into the output tensor's parameters.
func denseLayer(in []uint8, inParams QuantParams, weights []int8, wParams QuantParams, bias []float32, outDim int, outParams QuantParams) []uint8 {
	out := make([]uint8, outDim)
	scale := inParams.Scale * wParams.Scale
	for j := 0; j < outDim; j++ {
		var acc int32
		for i, x := range in {
			acc += (int32(x) - inParams.ZeroPoint) * (int32(weights[i*outDim+j]) - wParams.ZeroPoint)
		}
		v := float64(acc)*scale + float64(bias[j])
		out[j] = uint8(outParams.quantize(v))
	}
	return out
}

// Reconstruct quantizes a real window, invokes the model and dequantizes the result
func (q *QuantizedModel) Reconstruct(window []float64) ([]float64, error) {
	if len(window) != q.inputDim {
		return nil, fmt.Errorf("window has %d values, model expects %d", len(window), q.inputDim)
	}

	qin, err := q.input.QuantizeSlice(window)
	if err != nil {
		return nil, err
	}
	in := make([]uint8, len(qin))
	for i, v := range qin {
		in[i] = uint8(v)
	}

	out, err := q.Invoke(in)
	if err != nil {
		return nil, err
	}

	qout := make([]int32, len(out))
	for i, v := range out {
		qout[i] = int32(v)
	}
	return q.output.DequantizeSlice(qout)
}

type quantizedHeader struct {
	Magic     [4]byte
	Version   uint16
	_         uint16
	InputDim  uint32
	LatentDim uint32
}

type paramsRecord struct {
	Scale     float64
	ZeroPoint int32
	QMin      int32
	QMax      int32
}

// MarshalBinary encodes the model as a little-endian flat buffer
func (q *QuantizedModel) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	write := func(v any) error { return binary.Write(&buf, binary.LittleEndian, v) }

	header := quantizedHeader{
		Magic:     quantizedMagic,
		Version:   quantizedVersion,
		InputDim:  uint32(q.inputDim),
		LatentDim: uint32(q.latentDim),
	}
	if err := write(header); err != nil {
		return nil, err
	}
	for _, p := range q.params() {
		if err := write(paramsRecord(*p)); err != nil {
			return nil, err
		}
	}
	for _, v := range []any{q.encWeights, q.encBias, q.decWeights, q.decBias} {
		if err := write(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (q *QuantizedModel) params() []*QuantParams {
	return []*QuantParams{&q.input, &q.latent, &q.output, &q.encWeightParams, &q.decWeightParams}
}

// UnmarshalQuantizedModel decodes a model written by MarshalBinary
func UnmarshalQuantizedModel(data []byte) (*QuantizedModel, error) {
	r := bytes.NewReader(data)
	read := func(v any) error {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: truncated", ErrBadModelFile)
			}
			return err
		}
		return nil
	}

	var header quantizedHeader
	if err := read(&header); err != nil {
		return nil, err
	}
	if header.Magic != quantizedMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadModelFile, header.Magic[:])
	}
	if header.Version != quantizedVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadModelFile, header.Version)
	}
	if header.InputDim == 0 || header.LatentDim == 0 || header.InputDim > maxTensorDim || header.LatentDim > maxTensorDim {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrBadModelFile, header.InputDim, header.LatentDim)
	}

	q := &QuantizedModel{inputDim: int(header.InputDim), latentDim: int(header.LatentDim)}
	for i, p := range q.params() {
		var rec paramsRecord
		if err := read(&rec); err != nil {
			return nil, err
		}
		*p = QuantParams(rec)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadModelFile, err)
		}
		// activations are uint8, weights int8
		qmin, qmax := int32(Uint8Min), int32(Uint8Max)
		if i >= 3 {
			qmin, qmax = Int8Min, Int8Max
		}
		if p.QMin != qmin || p.QMax != qmax {
			return nil, fmt.Errorf("%w: tensor %d range [%d, %d], want [%d, %d]",
				ErrBadModelFile, i, p.QMin, p.QMax, qmin, qmax)
		}
	}

	q.encWeights = make([]int8, q.inputDim*q.latentDim)
	q.encBias = make([]float32, q.latentDim)
	q.decWeights = make([]int8, q.latentDim*q.inputDim)
	q.decBias = make([]float32, q.inputDim)
	for _, v := range []any{q.encWeights, q.encBias, q.decWeights, q.decBias} {
		if err := read(v); err != nil {
			return nil, err
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadModelFile, r.Len())
	}

	return q, nil
}
