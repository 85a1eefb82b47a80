package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Capstone-E1/climasense/internal/detector"
	"github.com/Capstone-E1/climasense/internal/metrics"
	"github.com/Capstone-E1/climasense/internal/ml"
	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/store"
)

// Broadcaster pushes detector output to live clients
type Broadcaster interface {
	BroadcastDetection(models.Detection)
	BroadcastAnomaly(models.AnomalyEvent)
}

// AnomalyPublisher forwards anomaly events to the broker
type AnomalyPublisher interface {
	PublishAnomaly(models.AnomalyEvent) error
}

// MonitorStatus is a snapshot of the live detection service
type MonitorStatus struct {
	Threshold     float64                     `json:"threshold"`
	WindowLength  int                         `json:"window_length"`
	Devices       map[string]DeviceStatus     `json:"devices"`
	ReadingCount  int                         `json:"reading_count"`
	AnomalyCount  int                         `json:"anomaly_count"`
	LatestResults map[string]models.Detection `json:"latest_results"`
	Uptime        string                      `json:"uptime"`
}

// DeviceStatus reports the warm-up progress of one device's detector
type DeviceStatus struct {
	Warm  int  `json:"warm"`
	Ready bool `json:"ready"`
}

// MonitorService runs one detector per device over the live sensor feed
type MonitorService struct {
	model     ml.Reconstructor
	threshold float64
	length    int

	mu        sync.Mutex
	detectors map[string]*detector.Detector

	store     store.DataStore
	metrics   *metrics.Metrics
	hub       Broadcaster
	recorder  store.EventRecorder
	publisher AnomalyPublisher
	started   time.Time
}

// NewMonitorService creates a monitor scoring windows of length samples with model
func NewMonitorService(model ml.Reconstructor, threshold float64, length int, dataStore store.DataStore) (*MonitorService, error) {
	// Build one detector up front so bad model/threshold combinations fail here
	if _, err := detector.New(model, threshold, length); err != nil {
		return nil, err
	}
	if dataStore == nil {
		return nil, fmt.Errorf("monitor needs a data store")
	}

	return &MonitorService{
		model:     model,
		threshold: threshold,
		length:    length,
		detectors: make(map[string]*detector.Detector),
		store:     dataStore,
		started:   time.Now(),
	}, nil
}

// SetMetrics attaches Prometheus collectors
func (m *MonitorService) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
	mt.SetThreshold(m.threshold)
}

// SetBroadcaster attaches the WebSocket hub
func (m *MonitorService) SetBroadcaster(b Broadcaster) {
	m.hub = b
}

// SetEventRecorder attaches the run ledger
func (m *MonitorService) SetEventRecorder(r store.EventRecorder) {
	m.recorder = r
}

// SetPublisher attaches the MQTT anomaly publisher
func (m *MonitorService) SetPublisher(p AnomalyPublisher) {
	m.publisher = p
}

// Threshold returns the active anomaly threshold
func (m *MonitorService) Threshold() float64 {
	return m.threshold
}

func (m *MonitorService) detectorFor(deviceID string) *detector.Detector {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.detectors[deviceID]
	if !ok {
		// parameters were validated in NewMonitorService
		d, _ = detector.New(m.model, m.threshold, m.length)
		m.detectors[deviceID] = d
		log.Printf("📟 New device %s, warming up (%d samples)", deviceID, m.length)
	}
	return d
}

// HandleReading pushes a reading through its device's detector, stores the
// verdict and fans out anomalies.
func (m *MonitorService) HandleReading(reading *models.SensorReading) (models.Detection, error) {
	if reading.DeviceID == "" {
		reading.DeviceID = "default"
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	m.store.AddSensorReading(*reading)

	outcome, err := m.detectorFor(reading.DeviceID).Push(reading.Sample)
	if err != nil {
		return models.Detection{}, fmt.Errorf("device %s: %w", reading.DeviceID, err)
	}

	detection := models.Detection{
		DeviceID:  reading.DeviceID,
		Timestamp: reading.Timestamp,
		Temp:      reading.Temp,
		Hum:       reading.Hum,
		State:     string(outcome.State),
		Warm:      outcome.Warm,
		MSE:       outcome.MSE,
		Threshold: outcome.Threshold,
		Anomaly:   outcome.Anomaly,
	}

	m.metrics.ObserveReading(detection.State)
	switch outcome.State {
	case detector.StateSkipped:
		log.Printf("⚠️  Skipping unusable reading from %s (temp=%v hum=%v)", reading.DeviceID, reading.Temp, reading.Hum)
	case detector.StateWarmingUp:
		if outcome.Warm == m.length {
			log.Printf("✅ Device %s warm-up complete", reading.DeviceID)
		}
	case detector.StateEvaluated:
		m.metrics.ObserveWindow(reading.DeviceID, outcome.MSE)
		m.store.SetDetection(detection)
	}

	if m.hub != nil {
		m.hub.BroadcastDetection(detection)
	}

	if detection.Anomaly {
		m.raise(detection)
	}

	return detection, nil
}

func (m *MonitorService) raise(detection models.Detection) {
	event := detection.ToEvent()
	event.ID = uuid.NewString()

	log.Printf("🚨 ANOMALY on %s: mse=%.6f threshold=%.6f (%s)", event.DeviceID, event.MSE, event.Threshold, event.Severity)

	m.store.AddAnomalyEvent(event)
	m.metrics.ObserveAnomaly(event.Severity)

	if m.hub != nil {
		m.hub.BroadcastAnomaly(event)
	}
	if m.recorder != nil {
		if err := m.recorder.SaveAnomalyEvent(&event); err != nil {
			log.Printf("⚠️  Warning: Failed to record anomaly: %v", err)
		}
	}
	if m.publisher != nil {
		if err := m.publisher.PublishAnomaly(event); err != nil {
			log.Printf("⚠️  Warning: Failed to publish anomaly: %v", err)
		}
	}
}

// ResetDevice restarts warm-up for a device. It reports false for unknown devices.
func (m *MonitorService) ResetDevice(deviceID string) bool {
	m.mu.Lock()
	d, ok := m.detectors[deviceID]
	m.mu.Unlock()

	if ok {
		d.Reset()
	}
	return ok
}

// Status returns a snapshot of every device's detector and the store counters
func (m *MonitorService) Status() MonitorStatus {
	m.mu.Lock()
	devices := make(map[string]DeviceStatus, len(m.detectors))
	for id, d := range m.detectors {
		devices[id] = DeviceStatus{Warm: d.Warm(), Ready: d.Ready()}
	}
	m.mu.Unlock()

	return MonitorStatus{
		Threshold:     m.threshold,
		WindowLength:  m.length,
		Devices:       devices,
		ReadingCount:  m.store.GetReadingCount(),
		AnomalyCount:  m.store.GetAnomalyCount(),
		LatestResults: m.store.GetLatestDetections(),
		Uptime:        time.Since(m.started).Round(time.Second).String(),
	}
}
