package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/database"
	httphandlers "github.com/Capstone-E1/climasense/internal/http"
	"github.com/Capstone-E1/climasense/internal/metrics"
	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/mqtt"
	"github.com/Capstone-E1/climasense/internal/pipeline"
	"github.com/Capstone-E1/climasense/internal/services"
	"github.com/Capstone-E1/climasense/internal/store"
	"github.com/Capstone-E1/climasense/internal/ws"
)

func main() {
	log.Println("🌡️  Starting ClimaSense Anomaly Monitor...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	} else {
		log.Println("✅ Loaded .env file")
	}

	cfg := config.Load()
	log.Printf("📋 Loaded configuration: Server port=%s, window=%d, ledger=%s",
		cfg.Server.Port, cfg.Pipeline.WindowLength, cfg.Ledger.Driver)

	// Load the quantized model and the threshold calibrated for it
	model, err := pipeline.LoadQuantizedModel(cfg.Pipeline.QuantizedModelFile)
	if err != nil {
		log.Fatalf("❌ Failed to load model: %v", err)
	}
	stats, err := pipeline.LoadThresholdStats(cfg.Pipeline.Uint8ThresholdFile)
	if err != nil {
		log.Fatalf("❌ Failed to load threshold: %v", err)
	}
	log.Printf("🤖 Loaded %s (threshold=%.6f)", cfg.Pipeline.QuantizedModelFile, stats.Threshold)

	dataStore := store.NewStore(cfg.Server.MaxReadings, cfg.Server.MaxEvents)
	log.Println("💾 Initialized in-memory data store")

	monitor, err := services.NewMonitorService(model, stats.Threshold, cfg.Pipeline.WindowLength, dataStore)
	if err != nil {
		log.Fatalf("❌ Failed to create monitor: %v", err)
	}

	mt := metrics.NewMetrics()
	monitor.SetMetrics(mt)

	// Record anomalies in the run ledger when one is configured
	if cfg.Ledger.Enabled() {
		db, err := database.Connect(cfg.Ledger)
		if err != nil {
			log.Printf("⚠️  Warning: Failed to connect to ledger: %v", err)
			log.Println("📱 Anomalies will only be kept in memory")
		} else {
			defer db.Close()
			if err := database.CreateTables(db); err != nil {
				log.Fatalf("❌ Failed to prepare ledger tables: %v", err)
			}
			monitor.SetEventRecorder(database.NewLedgerStore(db))
			log.Printf("✅ Recording anomalies in %s ledger", db.Driver)
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run(ctx)
	monitor.SetBroadcaster(wsHub)
	log.Println("🔌 Started WebSocket hub")

	// Initialize MQTT client (skip if no broker URL configured)
	if cfg.MQTT.BrokerURL != "" {
		log.Println("📡 Attempting to connect to MQTT broker...")
		mqttClient := mqtt.NewClient(&mqtt.Config{
			BrokerURL:       cfg.MQTT.BrokerURL,
			ClientID:        cfg.MQTT.ClientID,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			KeepAlive:       cfg.MQTT.KeepAlive,
			PingTimeout:     cfg.MQTT.PingTimeout,
			ConnectRetry:    cfg.MQTT.ConnectRetry,
			TopicSensorData: cfg.MQTT.TopicSensorData,
			TopicAnomalies:  cfg.MQTT.TopicAnomalies,
		})
		mqttClient.SetDataHandler(func(reading *models.SensorReading) {
			if _, err := monitor.HandleReading(reading); err != nil {
				log.Printf("❌ Failed to evaluate reading: %v", err)
			}
		})
		mqttClient.SetErrorHandler(func(err error) {
			wsHub.BroadcastError(err.Error())
		})

		if err := mqttClient.Connect(); err != nil {
			log.Printf("⚠️  Warning: Failed to connect to MQTT broker: %v", err)
			log.Println("📡 Continuing without MQTT support, readings can be posted over HTTP")
		} else {
			monitor.SetPublisher(mqttClient)
			log.Printf("📡 MQTT client started - Broker: %s", cfg.MQTT.BrokerURL)
			defer mqttClient.Disconnect()
		}
	} else {
		log.Println("📡 MQTT broker not configured, skipping MQTT initialization")
	}

	scheduler := services.NewScheduler(monitor, wsHub, cfg.Server.StatusInterval)
	scheduler.Start()

	router := httphandlers.SetupRoutes(dataStore, monitor, wsHub, mt)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("🚀 Starting HTTP server on port %s", cfg.Server.Port)
		log.Println("📡 API endpoints available:")
		log.Println("  GET /api/v1/status - Detector state per device")
		log.Println("  GET /api/v1/stats - System statistics")
		log.Println("  GET /api/v1/readings/latest - Latest reading")
		log.Println("  GET /api/v1/readings/recent?limit=50&device_id= - Recent readings")
		log.Println("  POST /api/v1/readings?device_id= - Push a reading through the detector")
		log.Println("  POST /api/v1/devices/{deviceID}/reset - Restart warm-up for a device")
		log.Println("  GET /api/v1/anomalies?limit=100&device_id= - Recent anomaly events")
		log.Println("  GET /api/v1/export/anomalies.xlsx - Export anomalies to Excel")
		log.Println("  GET /api/v1/export/anomalies.csv - Export anomalies to CSV")
		log.Println("  GET /metrics - Prometheus metrics")
		log.Println("  WS /ws?device_id= - WebSocket for real-time detections")
		log.Printf("🌐 Server running at http://localhost:%s", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down monitor...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}
	stop()

	log.Println("✅ Monitor shutdown complete")
}
