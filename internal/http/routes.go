package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Capstone-E1/climasense/internal/metrics"
	"github.com/Capstone-E1/climasense/internal/services"
	"github.com/Capstone-E1/climasense/internal/store"
	"github.com/Capstone-E1/climasense/internal/ws"
)

// SetupRoutes configures all HTTP routes for the live anomaly monitor
func SetupRoutes(dataStore store.DataStore, monitor *services.MonitorService, wsHub *ws.Hub, mt *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mt.Middleware)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, specify allowed origins
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var clients ClientCounter
	if wsHub != nil {
		clients = wsHub
	}
	handlers := NewHandlers(dataStore, monitor, clients)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handlers.GetStatus)
		r.Get("/stats", handlers.GetSystemStats)

		r.Route("/readings", func(r chi.Router) {
			r.Get("/latest", handlers.GetLatestReading)
			r.Get("/recent", handlers.GetRecentReadings)
			r.Post("/", handlers.AddSensorData) // manual ingest, same payload as MQTT
		})

		r.Post("/devices/{deviceID}/reset", handlers.ResetDevice)

		r.Get("/anomalies", handlers.GetAnomalies)

		r.Route("/export", func(r chi.Router) {
			r.Get("/anomalies.xlsx", handlers.ExportAnomaliesExcel)
			r.Get("/anomalies.csv", handlers.ExportAnomaliesCSV)
		})
	})

	if mt != nil {
		r.Handle("/metrics", mt.Handler())
	}

	// WebSocket route for real-time updates
	if wsHub != nil {
		r.HandleFunc("/ws", wsHub.HandleWebSocket)
	}

	return r
}
