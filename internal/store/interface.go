package store

import (
	"github.com/Capstone-E1/climasense/internal/models"
)

// DataStore defines the interface for the monitor's live data
type DataStore interface {
	AddSensorReading(models.SensorReading)
	GetLatestReading() (*models.SensorReading, bool)
	GetRecentReadings(int) []models.SensorReading
	GetRecentReadingsByDevice(string, int) []models.SensorReading
	GetReadingCount() int
	GetActiveDevices() []string

	SetDetection(models.Detection)
	GetLatestDetections() map[string]models.Detection

	AddAnomalyEvent(models.AnomalyEvent)
	GetRecentAnomalies(int) []models.AnomalyEvent
	GetAnomalyCount() int
}

// EventRecorder persists anomaly events outside the process
type EventRecorder interface {
	SaveAnomalyEvent(*models.AnomalyEvent) error
}
