package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/database"
)

func main() {
	var (
		drop   = flag.Bool("drop", false, "Drop all tables before creating")
		create = flag.Bool("create", true, "Create tables")
		check  = flag.Bool("check", false, "Check if tables exist")
	)
	flag.Parse()

	log.Println("🏗️  ClimaSense Run Ledger Migration Tool")
	log.Println("========================================")

	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	}

	// Load configuration
	cfg := config.Load()

	if !cfg.Ledger.Enabled() {
		log.Println("⚠️  Run ledger is disabled. Set LEDGER_DRIVER to one of:")
		log.Println("   LEDGER_DRIVER=sqlite   (LEDGER_PATH=climasense_runs.db)")
		log.Println("   LEDGER_DRIVER=postgres (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE or DATABASE_URL)")
		os.Exit(1)
	}

	db, err := database.Connect(cfg.Ledger)
	if err != nil {
		log.Fatalf("❌ Failed to connect to ledger: %v", err)
	}
	defer db.Close()

	if db.Driver == database.DriverSQLite {
		log.Printf("✅ Connected to ledger: %s", cfg.Ledger.Path)
	} else {
		log.Printf("✅ Connected to ledger: %s@%s:%s/%s",
			cfg.Ledger.User, cfg.Ledger.Host, cfg.Ledger.Port, cfg.Ledger.DBName)
	}

	// Drop tables if requested
	if *drop {
		log.Println("🗑️  Dropping existing tables...")
		if err := database.DropTables(db); err != nil {
			log.Fatalf("❌ Failed to drop tables: %v", err)
		}
	}

	// Create tables
	if *create {
		log.Println("🏗️  Creating ledger tables...")
		if err := database.CreateTables(db); err != nil {
			log.Fatalf("❌ Failed to create tables: %v", err)
		}
	}

	// Check tables
	if *check {
		log.Println("🔍 Checking if tables exist...")
		if err := database.CheckTablesExist(db); err != nil {
			log.Fatalf("❌ Table check failed: %v", err)
		}
	}

	log.Println("🎉 Ledger migration completed successfully!")
}
