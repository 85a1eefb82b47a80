package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Capstone-E1/climasense/internal/models"
)

// ErrInsufficientCalibration is returned when a calibration set is too small
// for a standard deviation to mean anything.
var ErrInsufficientCalibration = errors.New("calibration set needs at least 2 windows")

// Reconstructor maps a window to the model's reconstruction of it.
// Float and quantized models both satisfy it.
type Reconstructor interface {
	Reconstruct(window []float64) ([]float64, error)
	InputDim() int
}

// MSE returns the mean squared error between a window and its reconstruction
func MSE(original, reconstructed []float64) (float64, error) {
	if len(original) != len(reconstructed) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(original), len(reconstructed))
	}
	if len(original) == 0 {
		return 0, fmt.Errorf("cannot compute MSE of an empty window")
	}

	diff := make([]float64, len(original))
	floats.SubTo(diff, original, reconstructed)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// ComputeThreshold derives mean + k*std (population std) from per-window errors
func ComputeThreshold(mses []float64, k float64) (models.ThresholdStats, error) {
	if len(mses) < 2 {
		return models.ThresholdStats{}, fmt.Errorf("%w: got %d", ErrInsufficientCalibration, len(mses))
	}
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return models.ThresholdStats{}, fmt.Errorf("k factor must be finite and non-negative, got %v", k)
	}
	for i, v := range mses {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.ThresholdStats{}, fmt.Errorf("non-finite error %v at window %d", v, i)
		}
	}

	mean, std := stat.PopMeanStdDev(mses, nil)

	return models.ThresholdStats{
		Mean:      mean,
		Std:       std,
		K:         k,
		Threshold: mean + k*std,
		Count:     len(mses),
	}, nil
}

// ReconstructionErrors computes the MSE of every row in windows.
// progress, if set, is called after every `every` windows; a final partial
// batch is not reported.
func ReconstructionErrors(r Reconstructor, windows [][]float64, every int, progress func(done, total int)) ([]float64, error) {
	errs := make([]float64, len(windows))
	for i, w := range windows {
		if len(w) != r.InputDim() {
			return nil, fmt.Errorf("window %d has %d values, model expects %d", i, len(w), r.InputDim())
		}

		recon, err := r.Reconstruct(w)
		if err != nil {
			return nil, fmt.Errorf("reconstruct window %d: %w", i, err)
		}

		mse, err := MSE(w, recon)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		errs[i] = mse

		if progress != nil && every > 0 && (i+1)%every == 0 {
			progress(i+1, len(windows))
		}
	}
	return errs, nil
}

// EstimateThreshold runs r over a calibration set of normal windows and
// derives the anomaly threshold from the resulting errors.
func EstimateThreshold(r Reconstructor, windows [][]float64, k float64) (models.ThresholdStats, []float64, error) {
	if len(windows) < 2 {
		return models.ThresholdStats{}, nil, fmt.Errorf("%w: got %d", ErrInsufficientCalibration, len(windows))
	}

	errs, err := ReconstructionErrors(r, windows, 0, nil)
	if err != nil {
		return models.ThresholdStats{}, nil, err
	}

	stats, err := ComputeThreshold(errs, k)
	if err != nil {
		return models.ThresholdStats{}, nil, err
	}
	return stats, errs, nil
}
