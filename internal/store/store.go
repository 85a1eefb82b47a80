package store

import (
	"sort"
	"sync"

	"github.com/Capstone-E1/climasense/internal/models"
)

var _ DataStore = (*Store)(nil)

// Store keeps the monitor's recent readings, detections and anomaly events in memory
type Store struct {
	mu             sync.RWMutex
	sensorReadings []models.SensorReading
	anomalies      []models.AnomalyEvent
	latestReading  *models.SensorReading
	latestByDevice map[string]models.Detection
	devices        map[string]struct{}
	totalReadings  int
	totalAnomalies int
	maxReadings    int
	maxEvents      int
}

// NewStore creates a new in-memory store
func NewStore(maxReadings, maxEvents int) *Store {
	if maxReadings <= 0 {
		maxReadings = 1000 // Default to store last 1000 readings
	}
	if maxEvents <= 0 {
		maxEvents = 1000
	}

	return &Store{
		sensorReadings: make([]models.SensorReading, 0, maxReadings),
		anomalies:      make([]models.AnomalyEvent, 0, maxEvents),
		latestByDevice: make(map[string]models.Detection),
		devices:        make(map[string]struct{}),
		maxReadings:    maxReadings,
		maxEvents:      maxEvents,
	}
}

// AddSensorReading stores a new sensor reading
func (s *Store) AddSensorReading(reading models.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sensorReadings = append(s.sensorReadings, reading)

	// Maintain maximum size by removing oldest entries
	if len(s.sensorReadings) > s.maxReadings {
		s.sensorReadings = s.sensorReadings[1:]
	}

	s.latestReading = &reading
	s.devices[reading.DeviceID] = struct{}{}
	s.totalReadings++
}

// GetLatestReading returns the most recent reading
func (s *Store) GetLatestReading() (*models.SensorReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latestReading == nil {
		return nil, false
	}

	// Return a copy to avoid race conditions
	reading := *s.latestReading
	return &reading, true
}

// GetRecentReadings returns the most recent N readings, newest first
func (s *Store) GetRecentReadings(limit int) []models.SensorReading {
	return s.GetRecentReadingsByDevice("", limit)
}

// GetRecentReadingsByDevice returns the most recent N readings of one device.
// An empty deviceID matches every device.
func (s *Store) GetRecentReadingsByDevice(deviceID string, limit int) []models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readings := make([]models.SensorReading, 0, len(s.sensorReadings))
	for _, reading := range s.sensorReadings {
		if deviceID == "" || reading.DeviceID == deviceID {
			readings = append(readings, reading)
		}
	}

	// Sort by timestamp descending (most recent first)
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.After(readings[j].Timestamp)
	})

	if limit > 0 && len(readings) > limit {
		readings = readings[:limit]
	}

	return readings
}

// GetReadingCount returns the total number of readings received
func (s *Store) GetReadingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totalReadings
}

// GetActiveDevices returns the devices that have reported, sorted
func (s *Store) GetActiveDevices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]string, 0, len(s.devices))
	for id := range s.devices {
		devices = append(devices, id)
	}
	sort.Strings(devices)
	return devices
}

// SetDetection records the latest detector verdict for a device
func (s *Store) SetDetection(detection models.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latestByDevice[detection.DeviceID] = detection
	s.devices[detection.DeviceID] = struct{}{}
}

// GetLatestDetections returns a copy of the latest verdict per device
func (s *Store) GetLatestDetections() map[string]models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Detection, len(s.latestByDevice))
	for id, d := range s.latestByDevice {
		out[id] = d
	}
	return out
}

// AddAnomalyEvent stores an anomaly event
func (s *Store) AddAnomalyEvent(event models.AnomalyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anomalies = append(s.anomalies, event)
	if len(s.anomalies) > s.maxEvents {
		s.anomalies = s.anomalies[1:]
	}
	s.totalAnomalies++
}

// GetRecentAnomalies returns the most recent N events, newest first
func (s *Store) GetRecentAnomalies(limit int) []models.AnomalyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]models.AnomalyEvent, len(s.anomalies))
	for i, event := range s.anomalies {
		events[len(events)-1-i] = event
	}

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

// GetAnomalyCount returns the total number of anomalies detected
func (s *Store) GetAnomalyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totalAnomalies
}

// ClearReadings removes all stored readings (useful for testing)
func (s *Store) ClearReadings() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sensorReadings = make([]models.SensorReading, 0, s.maxReadings)
	s.latestReading = nil
}
