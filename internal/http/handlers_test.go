package http

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Capstone-E1/climasense/internal/metrics"
	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/services"
	"github.com/Capstone-E1/climasense/internal/store"
	"github.com/Capstone-E1/climasense/internal/ws"
)

// meanModel reconstructs every value as its channel mean over the window.
type meanModel struct{ dim int }

func (m meanModel) InputDim() int { return m.dim }

func (m meanModel) Reconstruct(window []float64) ([]float64, error) {
	var sums [2]float64
	for i, v := range window {
		sums[i%2] += v
	}
	n := float64(len(window) / 2)
	out := make([]float64, len(window))
	for i := range out {
		out[i] = sums[i%2] / n
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, store.DataStore) {
	t.Helper()

	dataStore := store.NewStore(100, 100)
	monitor, err := services.NewMonitorService(meanModel{dim: 6}, 1.0, 3, dataStore)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mt := metrics.NewMetrics()
	monitor.SetMetrics(mt)

	server := httptest.NewServer(SetupRoutes(dataStore, monitor, ws.NewHub(), mt))
	t.Cleanup(server.Close)
	return server, dataStore
}

func decode(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func postReading(t *testing.T, server *httptest.Server, device, payload string) *http.Response {
	t.Helper()

	url := server.URL + "/api/v1/readings"
	if device != "" {
		url += "?device_id=" + device
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	return resp
}

func TestAddSensorData(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name       string
		payload    string
		wantStatus int
		wantState  string
	}{
		{name: "JSON reading", payload: `{"temp":25,"hum":50}`, wantStatus: http.StatusOK, wantState: "warming_up"},
		{name: "Comma separated reading", payload: "25,50", wantStatus: http.StatusOK, wantState: "warming_up"},
		{name: "Out of range during warm-up", payload: `{"temp":-80,"hum":50}`, wantStatus: http.StatusOK, wantState: "skipped"},
		{name: "Garbage", payload: "not a reading", wantStatus: http.StatusBadRequest},
		{name: "Infinite value", payload: "inf,50", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postReading(t, server, "bench", tt.payload)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			body := decode(t, resp)
			if tt.wantStatus != http.StatusOK {
				if body.Success || body.Error == "" {
					t.Errorf("Expected error response, got %+v", body)
				}
				return
			}

			data, _ := json.Marshal(body.Data)
			var detection models.Detection
			json.Unmarshal(data, &detection)
			if detection.State != tt.wantState {
				t.Errorf("Expected state %s, got %s", tt.wantState, detection.State)
			}
			if detection.DeviceID != "bench" {
				t.Errorf("Expected device bench, got %s", detection.DeviceID)
			}
		})
	}
}

func TestAddSensorData_OverflowingReading(t *testing.T) {
	server, dataStore := newTestServer(t)

	for _, payload := range []string{"20,50", "21,51", "22,52"} {
		postReading(t, server, "d1", payload).Body.Close()
	}

	resp := postReading(t, server, "d1", "1e200,50")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	data, _ := json.Marshal(decode(t, resp).Data)
	var detection models.Detection
	json.Unmarshal(data, &detection)
	if !detection.Anomaly || detection.MSE != math.MaxFloat64 {
		t.Errorf("Expected anomaly with saturated mse, got %+v", detection)
	}
	if dataStore.GetAnomalyCount() != 1 {
		t.Fatalf("Expected 1 anomaly, got %d", dataStore.GetAnomalyCount())
	}

	for _, path := range []string{"/api/v1/anomalies", "/api/v1/status"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(server.URL + path)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", resp.StatusCode)
			}
			if body := decode(t, resp); !body.Success {
				t.Errorf("Expected success response, got %+v", body)
			}
		})
	}
}

func TestSendJSON_EncodeFailure(t *testing.T) {
	h := &Handlers{}
	rec := httptest.NewRecorder()

	h.sendJSON(rec, APIResponse{Success: true, Data: math.Inf(1)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Success {
		t.Errorf("Expected error body, got %q", rec.Body.String())
	}
}

func TestAnomalyFlow(t *testing.T) {
	server, dataStore := newTestServer(t)

	for _, payload := range []string{"25,50", "25,50", "25,50", "25,50", "34,50"} {
		postReading(t, server, "esp32-01", payload).Body.Close()
	}

	if dataStore.GetAnomalyCount() != 1 {
		t.Fatalf("Expected 1 anomaly, got %d", dataStore.GetAnomalyCount())
	}

	resp, err := http.Get(server.URL + "/api/v1/anomalies?device_id=esp32-01")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body := decode(t, resp)
	data := body.Data.(map[string]interface{})
	if events := data["events"].([]interface{}); len(events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(events))
	}

	resp, err = http.Get(server.URL + "/api/v1/anomalies?device_id=other")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	data = decode(t, resp).Data.(map[string]interface{})
	if events := data["events"].([]interface{}); len(events) != 0 {
		t.Errorf("Expected no events for another device, got %d", len(events))
	}

	resp, err = http.Get(server.URL + "/api/v1/export/anomalies.csv")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	csvBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	lines := strings.Split(strings.TrimSpace(string(csvBody)), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected header plus 1 event, got %d lines", len(lines))
	}
	if !strings.Contains(lines[len(lines)-1], "esp32-01") {
		t.Errorf("Expected event row for esp32-01, got %q", lines[len(lines)-1])
	}

	resp, err = http.Get(server.URL + "/api/v1/export/anomalies.xlsx")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	xlsx, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(xlsx) < 4 || string(xlsx[:2]) != "PK" {
		t.Errorf("Expected a zip-based workbook, got status %d and %d bytes", resp.StatusCode, len(xlsx))
	}
}

func TestGetStatusAndReadings(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/readings/latest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before any reading, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	postReading(t, server, "a", "21,40").Body.Close()
	postReading(t, server, "b", "22,41").Body.Close()

	resp, err = http.Get(server.URL + "/api/v1/readings/recent?device_id=a")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if readings := decode(t, resp).Data.([]interface{}); len(readings) != 1 {
		t.Errorf("Expected 1 reading for device a, got %d", len(readings))
	}

	resp, err = http.Get(server.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	status := decode(t, resp).Data.(map[string]interface{})
	if devices := status["devices"].(map[string]interface{}); len(devices) != 2 {
		t.Errorf("Expected 2 devices, got %d", len(devices))
	}
	if status["reading_count"].(float64) != 2 {
		t.Errorf("Expected reading_count 2, got %v", status["reading_count"])
	}
}

func TestResetDevice(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/devices/ghost/reset", "", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown device, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	postReading(t, server, "a", "21,40").Body.Close()
	resp, err = http.Post(server.URL+"/api/v1/devices/a/reset", "", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	if body := decode(t, resp); !body.Success {
		t.Errorf("Expected reset to succeed, got %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	postReading(t, server, "a", "21,40").Body.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, name := range []string{"climasense_readings_total", "climasense_anomaly_threshold", "http_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected metric %s in output", name)
		}
	}
}

func TestAPIResponse_Structure(t *testing.T) {
	response := APIResponse{
		Success: true,
		Message: "Test message",
		Data:    map[string]string{"test": "data"},
	}

	encoded, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Contains(string(encoded), `"error"`) {
		t.Errorf("Expected error field to be omitted, got %s", encoded)
	}
}
