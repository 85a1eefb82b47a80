package models

import (
	"math"
	"time"
)

// Precision identifies the arithmetic a threshold was calibrated under
type Precision string

const (
	PrecisionFloat Precision = "float32"
	PrecisionUint8 Precision = "uint8"
)

// ThresholdStats summarizes reconstruction error over a calibration set
type ThresholdStats struct {
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	K         float64 `json:"k"`
	Threshold float64 `json:"threshold"`
	Count     int     `json:"count"`
}

// IsAnomalous reports whether a reconstruction error exceeds the threshold
func (t ThresholdStats) IsAnomalous(mse float64) bool {
	return mse > t.Threshold
}

// ThresholdRun is one recorded threshold computation
type ThresholdRun struct {
	ID          string    `json:"id"`
	Stage       string    `json:"stage"`
	Precision   Precision `json:"precision"`
	WindowCount int       `json:"window_count"`
	Mean        float64   `json:"mean"`
	Std         float64   `json:"std"`
	K           float64   `json:"k"`
	Threshold   float64   `json:"threshold"`
	Artifact    string    `json:"artifact"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewThresholdRun builds a ledger record from computed stats
func NewThresholdRun(stage string, precision Precision, stats ThresholdStats, artifact string) *ThresholdRun {
	return &ThresholdRun{
		Stage:       stage,
		Precision:   precision,
		WindowCount: stats.Count,
		Mean:        stats.Mean,
		Std:         stats.Std,
		K:           stats.K,
		Threshold:   stats.Threshold,
		Artifact:    artifact,
		CreatedAt:   time.Now(),
	}
}

// AnomalyEvent is a window the live detector flagged
type AnomalyEvent struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	DetectedAt time.Time `json:"detected_at"`
	Temp       float64   `json:"temp"`
	Hum        float64   `json:"hum"`
	MSE        float64   `json:"mse"`
	Threshold  float64   `json:"threshold"`
	Severity   string    `json:"severity"`
}

// Severity buckets how far the error is above the threshold
func Severity(mse, threshold float64) string {
	if threshold <= 0 || math.IsNaN(mse) {
		return "unknown"
	}
	ratio := mse / threshold
	switch {
	case ratio >= 4.0:
		return "critical"
	case ratio >= 2.0:
		return "high"
	case ratio >= 1.25:
		return "medium"
	default:
		return "low"
	}
}

// Detection is the detector's verdict on one live reading
type Detection struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Temp      float64   `json:"temp"`
	Hum       float64   `json:"hum"`
	State     string    `json:"state"`
	Warm      int       `json:"warm"`
	MSE       float64   `json:"mse"`
	Threshold float64   `json:"threshold"`
	Anomaly   bool      `json:"anomaly"`
}

// ToEvent converts an anomalous detection into an event record
func (d Detection) ToEvent() AnomalyEvent {
	return AnomalyEvent{
		DeviceID:   d.DeviceID,
		DetectedAt: d.Timestamp,
		Temp:       d.Temp,
		Hum:        d.Hum,
		MSE:        d.MSE,
		Threshold:  d.Threshold,
		Severity:   Severity(d.MSE, d.Threshold),
	}
}
