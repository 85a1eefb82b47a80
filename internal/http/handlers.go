package http

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Capstone-E1/climasense/internal/export"
	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/services"
	"github.com/Capstone-E1/climasense/internal/store"
)

const maxReadingBody = 1 << 16

// ClientCounter reports how many live clients are attached
type ClientCounter interface {
	GetConnectedClientsCount() int
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	store         store.DataStore
	monitor       *services.MonitorService
	clients       ClientCounter
	parser        *services.SensorParser
	exportService *export.ExportService
}

// NewHandlers creates a new handlers instance
func NewHandlers(dataStore store.DataStore, monitor *services.MonitorService, clients ClientCounter) *Handlers {
	return &Handlers{
		store:         dataStore,
		monitor:       monitor,
		clients:       clients,
		parser:        services.NewSensorParser(),
		exportService: export.NewExportService(),
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// sendJSON writes a successful response
func (h *Handlers) sendJSON(w http.ResponseWriter, response APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
		h.sendErrorResponse(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(append(data, '\n'))
}

// sendErrorResponse sends a standardized error response
func (h *Handlers) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// parseLimit reads ?limit=, falling back to def for missing or invalid values
func parseLimit(r *http.Request, def int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			return parsedLimit
		}
	}
	return def
}

// GetStatus returns the detector state of every device
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, APIResponse{Success: true, Data: h.monitor.Status()})
}

// GetSystemStats returns system statistics
func (h *Handlers) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"total_readings":  h.store.GetReadingCount(),
		"total_anomalies": h.store.GetAnomalyCount(),
		"active_devices":  len(h.store.GetActiveDevices()),
		"threshold":       h.monitor.Threshold(),
		"server_time":     time.Now(),
	}
	if h.clients != nil {
		stats["connected_clients"] = h.clients.GetConnectedClientsCount()
	}

	h.sendJSON(w, APIResponse{Success: true, Data: stats})
}

// GetLatestReading returns the newest reading received from any device
func (h *Handlers) GetLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, exists := h.store.GetLatestReading()
	if !exists {
		h.sendErrorResponse(w, "No sensor data available", http.StatusNotFound)
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: reading})
}

// GetRecentReadings returns recent readings, optionally for one device
func (h *Handlers) GetRecentReadings(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	deviceID := r.URL.Query().Get("device_id")

	var readings []models.SensorReading
	if deviceID != "" {
		readings = h.store.GetRecentReadingsByDevice(deviceID, limit)
	} else {
		readings = h.store.GetRecentReadings(limit)
	}

	h.sendJSON(w, APIResponse{Success: true, Data: readings})
}

// AddSensorData handles POST requests to push a reading through the detector.
// The body uses the device payload format: JSON or "temp,hum".
func (h *Handlers) AddSensorData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadingBody))
	if err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = "manual"
	}

	reading, err := h.parser.ParsePayload(body, deviceID)
	if err != nil {
		h.sendErrorResponse(w, "Invalid sensor reading: "+err.Error(), http.StatusBadRequest)
		return
	}

	detection, err := h.monitor.HandleReading(reading)
	if err != nil {
		h.sendErrorResponse(w, "Failed to evaluate reading", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "Sensor data processed",
		Data:    detection,
	})
}

// ResetDevice restarts warm-up for one device
func (h *Handlers) ResetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	if !h.monitor.ResetDevice(deviceID) {
		h.sendErrorResponse(w, "Unknown device: "+deviceID, http.StatusNotFound)
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Message: "Detector reset for " + deviceID})
}

// GetAnomalies returns recent anomaly events, newest first
func (h *Handlers) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	events := h.filterEvents(r, h.store.GetRecentAnomalies(parseLimit(r, 100)))

	h.sendJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"events": events,
			"total":  h.store.GetAnomalyCount(),
		},
	})
}

func (h *Handlers) filterEvents(r *http.Request, events []models.AnomalyEvent) []models.AnomalyEvent {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		return events
	}

	filtered := []models.AnomalyEvent{}
	for _, event := range events {
		if event.DeviceID == deviceID {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// ExportAnomaliesExcel handles GET requests to export anomaly events as Excel
func (h *Handlers) ExportAnomaliesExcel(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	events := h.filterEvents(r, h.store.GetRecentAnomalies(0))

	excelFile, err := h.exportService.GenerateAnomalyExcel(export.AnomalyExport{
		GeneratedAt: now,
		Threshold:   h.monitor.Threshold(),
		Events:      events,
	})
	if err != nil {
		h.sendErrorResponse(w, "Failed to generate Excel file", http.StatusInternalServerError)
		return
	}
	defer excelFile.Close()

	filename := fmt.Sprintf("climasense_anomalies_%s.xlsx", now.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := excelFile.Write(w); err != nil {
		h.sendErrorResponse(w, "Failed to write Excel file", http.StatusInternalServerError)
		return
	}
}

// ExportAnomaliesCSV handles GET requests to export anomaly events as CSV
func (h *Handlers) ExportAnomaliesCSV(w http.ResponseWriter, r *http.Request) {
	events := h.filterEvents(r, h.store.GetRecentAnomalies(0))

	csvData, err := h.exportService.GenerateCSV(events)
	if err != nil {
		h.sendErrorResponse(w, "Failed to generate CSV data", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("climasense_anomalies_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	csvWriter := csv.NewWriter(w)
	if err := h.exportService.WriteCSV(csvWriter, csvData); err != nil {
		h.sendErrorResponse(w, "Failed to write CSV data", http.StatusInternalServerError)
		return
	}
}
