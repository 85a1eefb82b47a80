package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/models"
)

// LedgerStore records threshold runs and anomaly events
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new ledger store
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// SaveThresholdRun stores a threshold run, assigning an id if it has none
func (s *LedgerStore) SaveThresholdRun(run *models.ThresholdRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	query := `
		INSERT INTO threshold_runs (id, stage, dtype, window_count, mean, std, k, threshold, artifact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(s.db.Rebind(query), run.ID, run.Stage, string(run.Precision), run.WindowCount,
		run.Mean, run.Std, run.K, run.Threshold, run.Artifact, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save threshold run: %w", err)
	}
	return nil
}

// ListThresholdRuns returns the most recent runs, newest first
func (s *LedgerStore) ListThresholdRuns(limit int) ([]models.ThresholdRun, error) {
	query := `
		SELECT id, stage, dtype, window_count, mean, std, k, threshold, artifact, created_at
		FROM threshold_runs
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.Query(s.db.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ThresholdRun
	for rows.Next() {
		var run models.ThresholdRun
		var precision string
		if err := rows.Scan(&run.ID, &run.Stage, &precision, &run.WindowCount, &run.Mean,
			&run.Std, &run.K, &run.Threshold, &run.Artifact, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan threshold run: %w", err)
		}
		run.Precision = models.Precision(precision)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestThresholdRun returns the newest run for a precision, or nil if none exists
func (s *LedgerStore) LatestThresholdRun(precision models.Precision) (*models.ThresholdRun, error) {
	query := `
		SELECT id, stage, dtype, window_count, mean, std, k, threshold, artifact, created_at
		FROM threshold_runs
		WHERE dtype = ?
		ORDER BY created_at DESC
		LIMIT 1`

	var run models.ThresholdRun
	var p string
	err := s.db.QueryRow(s.db.Rebind(query), string(precision)).Scan(&run.ID, &run.Stage, &p,
		&run.WindowCount, &run.Mean, &run.Std, &run.K, &run.Threshold, &run.Artifact, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest threshold run: %w", err)
	}
	run.Precision = models.Precision(p)
	return &run, nil
}

// SaveAnomalyEvent stores an anomaly event, assigning an id if it has none
func (s *LedgerStore) SaveAnomalyEvent(event *models.AnomalyEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.DetectedAt = event.DetectedAt.UTC()

	query := `
		INSERT INTO anomaly_events (id, device_id, detected_at, temp, hum, mse, threshold, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(s.db.Rebind(query), event.ID, event.DeviceID, event.DetectedAt,
		event.Temp, event.Hum, event.MSE, event.Threshold, event.Severity)
	if err != nil {
		return fmt.Errorf("failed to save anomaly event: %w", err)
	}
	return nil
}

// ListAnomalyEvents returns the most recent events, newest first
func (s *LedgerStore) ListAnomalyEvents(limit int) ([]models.AnomalyEvent, error) {
	query := `
		SELECT id, device_id, detected_at, temp, hum, mse, threshold, severity
		FROM anomaly_events
		ORDER BY detected_at DESC
		LIMIT ?`

	rows, err := s.db.Query(s.db.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomaly events: %w", err)
	}
	defer rows.Close()

	var events []models.AnomalyEvent
	for rows.Next() {
		var event models.AnomalyEvent
		if err := rows.Scan(&event.ID, &event.DeviceID, &event.DetectedAt, &event.Temp,
			&event.Hum, &event.MSE, &event.Threshold, &event.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountAnomalyEvents returns the number of recorded events
func (s *LedgerStore) CountAnomalyEvents() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM anomaly_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count anomaly events: %w", err)
	}
	return count, nil
}

// RecordThresholdRun opens the configured ledger, makes sure its tables
// exist and stores run. Failures are logged as warnings and never abort
// the calling stage.
func RecordThresholdRun(cfg config.LedgerConfig, run *models.ThresholdRun) {
	if !cfg.Enabled() {
		return
	}

	db, err := Connect(cfg)
	if err != nil {
		log.Printf("⚠️  Warning: Run ledger unavailable: %v", err)
		return
	}
	defer db.Close()

	if err := CreateTables(db); err != nil {
		log.Printf("⚠️  Warning: Failed to prepare run ledger: %v", err)
		return
	}

	if err := NewLedgerStore(db).SaveThresholdRun(run); err != nil {
		log.Printf("⚠️  Warning: %v", err)
		return
	}
	log.Printf("📒 Recorded %s threshold run %s", run.Precision, run.ID)
}
