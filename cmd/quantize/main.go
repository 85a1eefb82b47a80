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

	if _, err := pipeline.Quantize(cfg); err != nil {
		if pipeline.IsConversionError(err) {
			log.Println("❌ Quant conversion failed:")
			log.Printf("   %v", err)
			log.Println("Common causes:")
			for _, hint := range pipeline.ConversionHints {
				log.Printf("- %s", hint)
			}
		}
		log.Fatalf("❌ Quantization failed: %v", err)
	}
}
