package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/database"
)

func main() {
	var (
		table = flag.String("table", "threshold_runs", "Table to view (threshold_runs, anomaly_events)")
		limit = flag.Int("limit", 10, "Number of records to show")
	)
	flag.Parse()

	log.Println("🔍 ClimaSense Run Ledger Viewer")
	log.Println("===============================")

	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.Ledger)
	if err != nil {
		log.Fatalf("❌ Failed to connect to ledger: %v", err)
	}
	defer db.Close()

	ledger := database.NewLedgerStore(db)

	switch *table {
	case "threshold_runs":
		viewThresholdRuns(ledger, *limit)
	case "anomaly_events":
		viewAnomalyEvents(ledger, *limit)
	default:
		log.Printf("Unknown table: %s", *table)
		log.Println("Available tables: threshold_runs, anomaly_events")
	}
}

func viewThresholdRuns(ledger *database.LedgerStore, limit int) {
	runs, err := ledger.ListThresholdRuns(limit)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}

	fmt.Printf("\n📊 Latest %d Threshold Runs:\n", limit)
	fmt.Println("=====================================")
	fmt.Printf("%-20s %-10s %-8s %-8s %-12s %-12s %-5s %-12s %s\n",
		"Created", "Stage", "Dtype", "Windows", "Mean", "Std", "K", "Threshold", "Artifact")
	fmt.Println("------------------------------------------------------------------------------------------------------------")

	for _, run := range runs {
		fmt.Printf("%-20s %-10s %-8s %-8d %-12.6g %-12.6g %-5.2g %-12.6g %s\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"), run.Stage, run.Precision, run.WindowCount,
			run.Mean, run.Std, run.K, run.Threshold, run.Artifact)
	}

	if len(runs) == 0 {
		fmt.Println("No threshold runs found.")
	} else {
		fmt.Printf("\nTotal: %d runs\n", len(runs))
	}
}

func viewAnomalyEvents(ledger *database.LedgerStore, limit int) {
	events, err := ledger.ListAnomalyEvents(limit)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}

	total, err := ledger.CountAnomalyEvents()
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}

	fmt.Printf("\n🚨 Latest %d Anomaly Events:\n", limit)
	fmt.Println("=====================================")
	fmt.Printf("%-20s %-12s %-7s %-7s %-12s %-12s %s\n",
		"Detected", "Device", "Temp", "Hum", "MSE", "Threshold", "Severity")
	fmt.Println("-----------------------------------------------------------------------------------------")

	for _, event := range events {
		fmt.Printf("%-20s %-12s %-7.2f %-7.2f %-12.6g %-12.6g %s\n",
			event.DetectedAt.Format("2006-01-02 15:04:05"), event.DeviceID, event.Temp, event.Hum,
			event.MSE, event.Threshold, event.Severity)
	}

	if len(events) == 0 {
		fmt.Println("No anomaly events found.")
	} else {
		fmt.Printf("\nShowing %d of %d events\n", len(events), total)
	}
}
