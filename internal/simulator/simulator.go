// Package simulator synthesizes the two-channel temperature/humidity series
// used to fit and calibrate the anomaly model.
package simulator

import (
	"math"
	"math/rand/v2"

	"github.com/Capstone-E1/climasense/internal/models"
)

// Config controls the shape of the generated series
type Config struct {
	NormalSamples  int
	AnomalySamples int
	Seed           uint64
}

// DefaultConfig matches the reference dataset: 6000 normal samples followed by 200 anomalies
func DefaultConfig() Config {
	return Config{
		NormalSamples:  6000,
		AnomalySamples: 200,
		Seed:           7,
	}
}

// Simulator generates reproducible sensor series
type Simulator struct {
	cfg Config
}

// New creates a simulator
func New(cfg Config) *Simulator {
	return &Simulator{cfg: cfg}
}

type offset struct {
	value float64
	p     float64
}

var (
	tempSpikes = []offset{{5, 0.2}, {-7, 0.1}, {0, 0.7}}
	humSpikes  = []offset{{20, 0.1}, {-30, 0.05}, {0, 0.85}}
)

// Generate returns the normal block followed by the anomalous block.
// The same seed always produces the same series.
func (s *Simulator) Generate() []models.Sample {
	samples, _ := s.Labeled()
	return samples
}

// Labeled is Generate plus a per-sample anomaly flag
func (s *Simulator) Labeled() ([]models.Sample, []bool) {
	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed+1))

	n := max(s.cfg.NormalSamples, 0)
	m := max(s.cfg.AnomalySamples, 0)
	samples := make([]models.Sample, 0, n+m)
	labels := make([]bool, 0, n+m)

	for _, x := range linspace(0, 6.28, n) {
		samples = append(samples, models.Sample{
			Temp: 29 + 5*math.Sin(x/(2*3.14)) + rng.NormFloat64()*0.3,
			Hum:  50 + 10*math.Sin(0.8*x) + rng.NormFloat64()*1.0,
		})
		labels = append(labels, false)
	}

	for i := 0; i < m; i++ {
		samples = append(samples, models.Sample{
			Temp: 29 + rng.NormFloat64()*0.5 + choose(rng, tempSpikes),
			Hum:  50 + rng.NormFloat64()*1.5 + choose(rng, humSpikes),
		})
		labels = append(labels, true)
	}

	return samples, labels
}

// linspace returns n evenly spaced values over [start, stop], endpoints included
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	switch n {
	case 0:
	case 1:
		out[0] = start
	default:
		step := (stop - start) / float64(n-1)
		for i := range out {
			out[i] = start + float64(i)*step
		}
		out[n-1] = stop
	}
	return out
}

func choose(rng *rand.Rand, options []offset) float64 {
	r := rng.Float64()
	for _, o := range options {
		if r < o.p {
			return o.value
		}
		r -= o.p
	}
	return options[len(options)-1].value
}
