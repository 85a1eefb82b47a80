package models

import (
	"fmt"
	"math"
	"time"
)

// Lower limits of the DHT20 temperature/humidity sensor. The firmware
// checks only these during warm-up.
const (
	MinTemperature = -40.0
	MinHumidity    = 0.0
)

// ChannelNames lists the sample channels in window order
var ChannelNames = []string{"temp", "hum"}

// Sample is one temperature/humidity reading at a single time step
type Sample struct {
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
}

// Vector returns the sample as a channel vector in window order
func (s Sample) Vector() []float64 {
	return []float64{s.Temp, s.Hum}
}

// IsNaN reports whether either channel failed to read
func (s Sample) IsNaN() bool {
	return math.IsNaN(s.Temp) || math.IsNaN(s.Hum)
}

// IsFinite reports whether both channels hold finite values
func (s Sample) IsFinite() bool {
	return !s.IsNaN() && !math.IsInf(s.Temp, 0) && !math.IsInf(s.Hum, 0)
}

// Validate checks if the reading can seed the detector window
func (s Sample) Validate() error {
	if !s.IsFinite() {
		return fmt.Errorf("sensor read failed: temp=%v hum=%v", s.Temp, s.Hum)
	}
	if s.Temp < MinTemperature {
		return fmt.Errorf("temperature %.2f below sensor minimum %.0f", s.Temp, MinTemperature)
	}
	if s.Hum < MinHumidity {
		return fmt.Errorf("humidity %.2f below sensor minimum %.0f", s.Hum, MinHumidity)
	}
	return nil
}

// SamplesToSeries converts samples into the row-per-step layout the windower expects
func SamplesToSeries(samples []Sample) [][]float64 {
	series := make([][]float64, len(samples))
	for i, s := range samples {
		series[i] = s.Vector()
	}
	return series
}

// SensorReading is a sample received from a live device
type SensorReading struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Sample
}

// SensorData represents the raw JSON structure received from the device.
// Older firmware sends temperature/humidity instead of temp/hum.
type SensorData struct {
	Temp        *float64 `json:"temp,omitempty"`
	Hum         *float64 `json:"hum,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	DeviceID    string   `json:"device_id,omitempty"`
}

// ToSample resolves whichever field names the device used
func (d SensorData) ToSample() (Sample, error) {
	temp := d.Temp
	if temp == nil {
		temp = d.Temperature
	}
	hum := d.Hum
	if hum == nil {
		hum = d.Humidity
	}
	if temp == nil || hum == nil {
		return Sample{}, fmt.Errorf("payload must contain temp and hum")
	}
	return Sample{Temp: *temp, Hum: *hum}, nil
}
