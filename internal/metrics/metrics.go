package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the monitor's Prometheus collectors
type Metrics struct {
	registry          *prometheus.Registry
	readingsTotal     *prometheus.CounterVec
	windowsEvaluated  prometheus.Counter
	anomaliesTotal    *prometheus.CounterVec
	lastMSE           *prometheus.GaugeVec
	threshold         prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "climasense_readings_total",
			Help: "Readings received, by detector state (warming_up, skipped, evaluated).",
		}, []string{"state"}),
		windowsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "climasense_windows_evaluated_total",
			Help: "Windows scored by the quantized model.",
		}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "climasense_anomalies_total",
			Help: "Windows whose reconstruction error exceeded the threshold, by severity.",
		}, []string{"severity"}),
		lastMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "climasense_last_mse",
			Help: "Reconstruction error of the latest scored window per device.",
		}, []string{"device"}),
		threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "climasense_anomaly_threshold",
			Help: "Anomaly threshold loaded by the monitor.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.readingsTotal,
		m.windowsEvaluated,
		m.anomaliesTotal,
		m.lastMSE,
		m.threshold,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetThreshold publishes the active threshold
func (m *Metrics) SetThreshold(v float64) {
	if m == nil {
		return
	}
	m.threshold.Set(v)
}

// ObserveReading counts a reading by the state the detector left it in
func (m *Metrics) ObserveReading(state string) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(state).Inc()
}

// ObserveWindow records a scored window
func (m *Metrics) ObserveWindow(device string, mse float64) {
	if m == nil {
		return
	}
	m.windowsEvaluated.Inc()
	m.lastMSE.WithLabelValues(device).Set(mse)
}

// ObserveAnomaly counts a flagged window
func (m *Metrics) ObserveAnomaly(severity string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(severity).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations, labelled by path
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
