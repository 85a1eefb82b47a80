package database

import (
	"fmt"
	"log"
)

var ledgerTables = []string{
	"threshold_runs",
	"anomaly_events",
}

// CreateTables creates the run ledger tables
func CreateTables(db *DB) error {
	log.Println("Creating database tables...")

	// Create threshold_runs table - one row per threshold computed by a pipeline stage
	thresholdRunsTable := `
	CREATE TABLE IF NOT EXISTS threshold_runs (
		id VARCHAR(36) PRIMARY KEY,
		stage VARCHAR(50) NOT NULL,
		dtype VARCHAR(20) NOT NULL CHECK (dtype IN ('float32', 'uint8')),
		window_count INTEGER NOT NULL CHECK (window_count >= 0),
		mean DOUBLE PRECISION NOT NULL,
		std DOUBLE PRECISION NOT NULL CHECK (std >= 0),
		k DOUBLE PRECISION NOT NULL,
		threshold DOUBLE PRECISION NOT NULL,
		artifact VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`

	if _, err := db.Exec(thresholdRunsTable); err != nil {
		return fmt.Errorf("failed to create threshold_runs table: %w", err)
	}

	// Create anomaly_events table - windows flagged by the live monitor
	anomalyEventsTable := `
	CREATE TABLE IF NOT EXISTS anomaly_events (
		id VARCHAR(36) PRIMARY KEY,
		device_id VARCHAR(100) NOT NULL DEFAULT '',
		detected_at TIMESTAMP NOT NULL,
		temp DOUBLE PRECISION NOT NULL,
		hum DOUBLE PRECISION NOT NULL,
		mse DOUBLE PRECISION NOT NULL,
		threshold DOUBLE PRECISION NOT NULL,
		severity VARCHAR(20) NOT NULL
	);`

	if _, err := db.Exec(anomalyEventsTable); err != nil {
		return fmt.Errorf("failed to create anomaly_events table: %w", err)
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_threshold_runs_created_at ON threshold_runs(created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_threshold_runs_dtype ON threshold_runs(dtype);",
		"CREATE INDEX IF NOT EXISTS idx_anomaly_events_detected_at ON anomaly_events(detected_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_anomaly_events_device_id ON anomaly_events(device_id);",
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		}
	}

	log.Println("✅ Database tables created successfully")
	return nil
}

// DropTables drops all ledger tables
func DropTables(db *DB) error {
	log.Println("Dropping database tables...")

	for _, table := range ledgerTables {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s;", table)
		if db.Driver == DriverPostgres {
			query = fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", table)
		}
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	log.Println("✅ Database tables dropped successfully")
	return nil
}

// CheckTablesExist checks if all required tables exist
func CheckTablesExist(db *DB) error {
	query := `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = ?
	);`
	if db.Driver == DriverSQLite {
		query = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?);`
	}

	for _, table := range ledgerTables {
		var exists bool
		err := db.QueryRow(db.Rebind(query), table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}

		if !exists {
			return fmt.Errorf("table %s does not exist", table)
		}
	}

	log.Println("✅ All required tables exist")
	return nil
}
