package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Capstone-E1/climasense/internal/models"
)

// SensorParser handles parsing of sensor data from various sources
type SensorParser struct{}

// NewSensorParser creates a new instance of SensorParser
func NewSensorParser() *SensorParser {
	return &SensorParser{}
}

// ParseSensorJSON parses a JSON payload such as {"temp":24.1,"hum":55.2}.
// A device_id in the payload overrides deviceID.
func (sp *SensorParser) ParseSensorJSON(payload []byte, deviceID string) (*models.SensorReading, error) {
	var sensorData models.SensorData

	// Parse the JSON payload
	if err := json.Unmarshal(payload, &sensorData); err != nil {
		return nil, fmt.Errorf("failed to parse sensor JSON: %w", err)
	}

	sample, err := sensorData.ToSample()
	if err != nil {
		return nil, err
	}
	if sensorData.DeviceID != "" {
		deviceID = sensorData.DeviceID
	}

	return &models.SensorReading{
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Sample:    sample,
	}, nil
}

// ParseSensorString parses comma-separated sensor values (fallback format)
// Expected format: "temp,hum"
func (sp *SensorParser) ParseSensorString(payload string, deviceID string) (*models.SensorReading, error) {
	var temp, hum float64

	// Parse comma-separated values
	n, err := fmt.Sscanf(strings.TrimSpace(payload), "%f,%f", &temp, &hum)
	if err != nil || n != 2 {
		return nil, fmt.Errorf("failed to parse sensor string: expected 2 values (temp,hum), got %d", n)
	}
	// nan is how the firmware reports a failed read; infinities are never valid
	if math.IsInf(temp, 0) || math.IsInf(hum, 0) {
		return nil, fmt.Errorf("failed to parse sensor string: infinite value in %q", payload)
	}

	return &models.SensorReading{
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Sample:    models.Sample{Temp: temp, Hum: hum},
	}, nil
}

// ParsePayload tries JSON first and falls back to the comma-separated format
func (sp *SensorParser) ParsePayload(payload []byte, deviceID string) (*models.SensorReading, error) {
	reading, jsonErr := sp.ParseSensorJSON(payload, deviceID)
	if jsonErr == nil {
		return reading, nil
	}

	reading, err := sp.ParseSensorString(string(payload), deviceID)
	if err != nil {
		return nil, fmt.Errorf("%v; %w", jsonErr, err)
	}
	return reading, nil
}

// DeviceFromTopic extracts the device id from climasense/sensors/<device>/data.
// Topics without a device segment return fallback.
func DeviceFromTopic(topic, fallback string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 4 && parts[1] == "sensors" && parts[3] == "data" && parts[2] != "" {
		return parts[2]
	}
	return fallback
}

// FormatSensorReading formats sensor reading for logging or debugging
func (sp *SensorParser) FormatSensorReading(reading *models.SensorReading) string {
	return fmt.Sprintf("Device: %s, Time: %s, Temp: %.2f °C, Humidity: %.2f %%",
		reading.DeviceID,
		reading.Timestamp.Format("2006-01-02 15:04:05"),
		reading.Temp,
		reading.Hum)
}
