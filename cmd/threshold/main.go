package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	}

	cfg := config.Load()

	if _, err := pipeline.Threshold(cfg, os.Stdout); err != nil {
		log.Fatalf("❌ Threshold computation failed: %v", err)
	}
}
