// Package detector runs the quantized model over a rolling window of live
// readings, the way the device firmware does.
package detector

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Capstone-E1/climasense/internal/ml"
	"github.com/Capstone-E1/climasense/internal/models"
)

// ErrInvalidThreshold is returned for a NaN, infinite or negative threshold
var ErrInvalidThreshold = errors.New("threshold must be finite and non-negative")

// State says what a pushed sample did to the detector
type State string

const (
	StateWarmingUp State = "warming_up" // sample went into the initial window
	StateSkipped   State = "skipped"    // unusable reading, window unchanged
	StateEvaluated State = "evaluated"  // window was scored
)

// Outcome is the result of pushing one sample
type Outcome struct {
	State     State     `json:"state"`
	Warm      int       `json:"warm"`
	MSE       float64   `json:"mse,omitempty"`
	Threshold float64   `json:"threshold"`
	Anomaly   bool      `json:"anomaly"`
	Window    []float64 `json:"window,omitempty"`
}

// Detector keeps the newest Length samples and scores every new one once
// the window has been filled with valid readings.
type Detector struct {
	mu        sync.Mutex
	model     ml.Reconstructor
	threshold float64
	length    int
	channels  int
	buf       []float64
	warm      int
}

// New creates a detector for windows of length samples
func New(model ml.Reconstructor, threshold float64, length int) (*Detector, error) {
	if model == nil {
		return nil, fmt.Errorf("detector needs a model")
	}
	if length <= 0 {
		return nil, fmt.Errorf("window length must be positive, got %d", length)
	}
	channels := len(models.ChannelNames)
	if model.InputDim() != length*channels {
		return nil, fmt.Errorf("model expects %d inputs, window has %d", model.InputDim(), length*channels)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	return &Detector{
		model:     model,
		threshold: threshold,
		length:    length,
		channels:  channels,
		buf:       make([]float64, length*channels),
	}, nil
}

// Ready reports whether warm-up is complete
func (d *Detector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warm >= d.length
}

// Warm returns the number of valid warm-up samples collected so far
func (d *Detector) Warm() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warm
}

// Threshold returns the anomaly threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Reset empties the window and restarts warm-up
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.buf)
	d.warm = 0
}

// Push adds a sample. During warm-up only physically valid readings count;
// afterwards only NaN or infinite readings are skipped, and every accepted
// sample produces a score for the window ending at it.
func (d *Detector) Push(s models.Sample) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.warm < d.length {
		if s.Validate() != nil {
			return Outcome{State: StateSkipped, Warm: d.warm, Threshold: d.threshold}, nil
		}
		d.shift(s)
		d.warm++
		return Outcome{State: StateWarmingUp, Warm: d.warm, Threshold: d.threshold}, nil
	}

	if !s.IsFinite() {
		return Outcome{State: StateSkipped, Warm: d.warm, Threshold: d.threshold}, nil
	}

	d.shift(s)
	window := append([]float64(nil), d.buf...)

	recon, err := d.model.Reconstruct(window)
	if err != nil {
		return Outcome{}, fmt.Errorf("reconstruct window: %w", err)
	}
	mse, err := ml.MSE(window, recon)
	if err != nil {
		return Outcome{}, err
	}
	// huge finite readings overflow the squared error
	if math.IsInf(mse, 1) || math.IsNaN(mse) {
		mse = math.MaxFloat64
	}

	return Outcome{
		State:     StateEvaluated,
		Warm:      d.warm,
		MSE:       mse,
		Threshold: d.threshold,
		Anomaly:   mse > d.threshold,
		Window:    window,
	}, nil
}

// shift drops the oldest sample and appends s at the end
func (d *Detector) shift(s models.Sample) {
	copy(d.buf, d.buf[d.channels:])
	v := s.Vector()
	copy(d.buf[len(d.buf)-d.channels:], v)
}
