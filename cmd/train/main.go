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
	log.Printf("🧠 Training reconstruction model: window=%d latent=%d k=%g",
		cfg.Pipeline.WindowLength, cfg.Pipeline.LatentDim, cfg.Pipeline.KFactor)

	if _, err := pipeline.Train(cfg); err != nil {
		log.Fatalf("❌ Training failed: %v", err)
	}

	log.Println("🎉 Training completed successfully!")
}
