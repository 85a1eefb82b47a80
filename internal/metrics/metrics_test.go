package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()

	m.SetThreshold(0.75)
	m.ObserveReading("evaluated")
	m.ObserveReading("evaluated")
	m.ObserveReading("skipped")
	m.ObserveWindow("esp32-01", 0.3)
	m.ObserveWindow("esp32-01", 1.2)
	m.ObserveAnomaly("medium")

	if got := testutil.ToFloat64(m.threshold); got != 0.75 {
		t.Errorf("Expected threshold 0.75, got %v", got)
	}
	if got := testutil.ToFloat64(m.readingsTotal.WithLabelValues("evaluated")); got != 2 {
		t.Errorf("Expected 2 evaluated readings, got %v", got)
	}
	if got := testutil.ToFloat64(m.windowsEvaluated); got != 2 {
		t.Errorf("Expected 2 windows, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastMSE.WithLabelValues("esp32-01")); got != 1.2 {
		t.Errorf("Expected last mse 1.2, got %v", got)
	}
	if got := testutil.ToFloat64(m.anomaliesTotal.WithLabelValues("medium")); got != 1 {
		t.Errorf("Expected 1 anomaly, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.SetThreshold(1)
	m.ObserveReading("evaluated")
	m.ObserveWindow("x", 1)
	m.ObserveAnomaly("low")

	rr := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected handler to run, got %d", rr.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetThreshold(2)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	if !strings.Contains(body, "climasense_anomaly_threshold 2") {
		t.Errorf("Expected threshold gauge in output:\n%s", body)
	}
	if !strings.Contains(body, `http_requests_total{route="/missing",status="404"} 1`) {
		t.Errorf("Expected request counter in output:\n%s", body)
	}
}
