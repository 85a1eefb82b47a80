package ml

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearAutoencoder reconstructs a window by projecting it onto the principal
// subspace of the training windows: encode z = (x-mean)W, decode zWᵀ + mean.
type LinearAutoencoder struct {
	mean    []float64  // 1 x inputDim
	weights *mat.Dense // inputDim x latentDim, orthonormal columns
}

// FitLinearAutoencoder fits the model on training windows (one per row)
func FitLinearAutoencoder(train *mat.Dense, latent int) (*LinearAutoencoder, error) {
	rows, cols := train.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("%w: need at least 2 training windows, got %d", ErrInsufficientData, rows)
	}
	if latent < 1 || latent > cols || latent > rows {
		return nil, fmt.Errorf("latent size must be in [1, %d], got %d", min(rows, cols), latent)
	}

	mean := make([]float64, cols)
	for j := 0; j < cols; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, train), nil)
	}

	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		src := train.RawRowView(i)
		dst := centered.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] - mean[j]
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, errors.New("singular value decomposition did not converge")
	}

	var v mat.Dense
	svd.VTo(&v)

	weights := mat.NewDense(cols, latent, nil)
	weights.Copy(v.Slice(0, cols, 0, latent))

	return &LinearAutoencoder{mean: mean, weights: weights}, nil
}

// InputDim is the flattened window length the model accepts
func (m *LinearAutoencoder) InputDim() int {
	return len(m.mean)
}

// LatentDim is the size of the bottleneck
func (m *LinearAutoencoder) LatentDim() int {
	_, c := m.weights.Dims()
	return c
}

// Encode projects a window into the latent space
func (m *LinearAutoencoder) Encode(window []float64) ([]float64, error) {
	if len(window) != m.InputDim() {
		return nil, fmt.Errorf("window has %d values, model expects %d", len(window), m.InputDim())
	}

	centered := make([]float64, len(window))
	for i, v := range window {
		centered[i] = v - m.mean[i]
	}

	var z mat.VecDense
	z.MulVec(m.weights.T(), mat.NewVecDense(len(centered), centered))
	return z.RawVector().Data, nil
}

// Decode maps a latent vector back to window space
func (m *LinearAutoencoder) Decode(z []float64) ([]float64, error) {
	if len(z) != m.LatentDim() {
		return nil, fmt.Errorf("latent vector has %d values, model expects %d", len(z), m.LatentDim())
	}

	var out mat.VecDense
	out.MulVec(m.weights, mat.NewVecDense(len(z), z))
	recon := out.RawVector().Data
	for i := range recon {
		recon[i] += m.mean[i]
	}
	return recon, nil
}

// Reconstruct encodes then decodes a window
func (m *LinearAutoencoder) Reconstruct(window []float64) ([]float64, error) {
	z, err := m.Encode(window)
	if err != nil {
		return nil, err
	}
	return m.Decode(z)
}

// Dense-layer view of the model, used by the quantization converter.
// Encoder: z = x·We + be with We = W, be = -mean·W.
// Decoder: y = z·Wd + bd with Wd = Wᵀ, bd = mean.
func (m *LinearAutoencoder) encoderBias() []float64 {
	var b mat.VecDense
	b.MulVec(m.weights.T(), mat.NewVecDense(len(m.mean), m.mean))
	bias := b.RawVector().Data
	for i := range bias {
		bias[i] = -bias[i]
	}
	return bias
}

type linearAutoencoderFile struct {
	Version   int
	InputDim  int
	LatentDim int
	Mean      []float64
	Weights   []float64 // row-major inputDim x latentDim
}

const linearAutoencoderVersion = 1

// Save writes the model as a snappy-framed gob stream
func (m *LinearAutoencoder) Save(w io.Writer) error {
	rows, cols := m.weights.Dims()
	payload := linearAutoencoderFile{
		Version:   linearAutoencoderVersion,
		InputDim:  rows,
		LatentDim: cols,
		Mean:      m.mean,
		Weights:   mat.DenseCopyOf(m.weights).RawMatrix().Data,
	}

	sw := snappy.NewBufferedWriter(w)
	if err := gob.NewEncoder(sw).Encode(&payload); err != nil {
		sw.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to flush model: %w", err)
	}
	return nil
}

// LoadLinearAutoencoder reads a model written by Save
func LoadLinearAutoencoder(r io.Reader) (*LinearAutoencoder, error) {
	var payload linearAutoencoderFile
	if err := gob.NewDecoder(snappy.NewReader(r)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	if payload.Version != linearAutoencoderVersion {
		return nil, fmt.Errorf("unsupported model version %d", payload.Version)
	}
	if payload.InputDim < 1 || payload.LatentDim < 1 || payload.LatentDim > payload.InputDim {
		return nil, fmt.Errorf("invalid model dimensions %dx%d", payload.InputDim, payload.LatentDim)
	}
	if len(payload.Mean) != payload.InputDim || len(payload.Weights) != payload.InputDim*payload.LatentDim {
		return nil, fmt.Errorf("model payload does not match its dimensions")
	}

	return &LinearAutoencoder{
		mean:    payload.Mean,
		weights: mat.NewDense(payload.InputDim, payload.LatentDim, payload.Weights),
	}, nil
}
