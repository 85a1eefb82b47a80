package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	}

	cfg := config.Load()
	log.Printf("🌡️  Simulating %d normal + %d anomalous samples (seed %d)",
		cfg.Pipeline.NormalSamples, cfg.Pipeline.AnomalySamples, cfg.Pipeline.SimulatorSeed)

	if _, err := pipeline.Simulate(cfg); err != nil {
		log.Fatalf("❌ Simulation failed: %v", err)
	}
}
