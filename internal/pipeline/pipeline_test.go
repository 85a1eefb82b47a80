package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/database"
	"github.com/Capstone-E1/climasense/internal/dataset"
	"github.com/Capstone-E1/climasense/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Load()
	p := &cfg.Pipeline
	p.WindowLength = 10
	p.LatentDim = 8
	p.KFactor = 3
	p.ValFraction = 0.2
	p.NormalSamples = 600
	p.AnomalySamples = 20
	p.RepWindows = 200
	p.CalibrationWindows = 100
	p.ProgressEvery = 50

	p.SensorCSV = filepath.Join(dir, "sensor_data.csv")
	p.ModelFile = filepath.Join(dir, "ae_model.bin")
	p.QuantizedModelFile = filepath.Join(dir, "ae_uint8.bin")
	p.RepWindowsFile = filepath.Join(dir, "rep_windows.npy")
	p.MSEValFile = filepath.Join(dir, "mse_val.npy")
	p.MSEUint8File = filepath.Join(dir, "mse_uint8.npy")
	p.FloatThresholdFile = filepath.Join(dir, "float_threshold.txt")
	p.Uint8ThresholdFile = filepath.Join(dir, "uint8_threshold.txt")
	p.TrainingReportFile = filepath.Join(dir, "training_report.xlsx")
	p.HeaderFile = filepath.Join(dir, "ae_model_data.h")
	p.HeaderArrayName = "ae_model_data"

	cfg.Ledger = config.LedgerConfig{Driver: "sqlite", Path: filepath.Join(dir, "runs.db")}
	return cfg
}

func TestStages_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	p := cfg.Pipeline

	n, err := Simulate(cfg)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if n != 620 {
		t.Errorf("Expected 620 samples, got %d", n)
	}

	trained, err := Train(cfg)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if trained.TrainWindows+trained.ValWindows != 611 {
		t.Errorf("Expected 611 windows, got %d", trained.TrainWindows+trained.ValWindows)
	}
	if trained.RepWindows != 200 {
		t.Errorf("Expected 200 representative windows, got %d", trained.RepWindows)
	}
	if trained.Threshold.Threshold < trained.Threshold.Mean {
		t.Errorf("Expected threshold >= mean, got %+v", trained.Threshold)
	}

	for _, path := range []string{p.ModelFile, p.MSEValFile, p.RepWindowsFile, p.FloatThresholdFile, p.TrainingReportFile} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", filepath.Base(path), err)
		}
	}

	mseVal, err := dataset.LoadVector(p.MSEValFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(mseVal) != trained.ValWindows {
		t.Errorf("Expected %d validation errors, got %d", trained.ValWindows, len(mseVal))
	}

	floatStats, err := LoadThresholdStats(p.FloatThresholdFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if floatStats.Threshold != trained.Threshold.Threshold {
		t.Errorf("Expected stored threshold %v, got %v", trained.Threshold.Threshold, floatStats.Threshold)
	}

	q, err := Quantize(cfg)
	if err != nil {
		t.Fatalf("Quantize failed: %v", err)
	}
	if q.InputDim() != 20 {
		t.Errorf("Expected input dim 20, got %d", q.InputDim())
	}

	var defines bytes.Buffer
	result, err := Threshold(cfg, &defines)
	if err != nil {
		t.Fatalf("Threshold failed: %v", err)
	}
	if result.Threshold.Count != 200 {
		t.Errorf("Expected 200 calibration windows, got %d", result.Threshold.Count)
	}
	for _, name := range []string{"ANOMALY_THRESHOLD", "INPUT_SCALE", "INPUT_ZERO_POINT", "OUTPUT_SCALE", "OUTPUT_ZERO_POINT"} {
		if !strings.Contains(defines.String(), "#define "+name+" ") {
			t.Errorf("Expected #define %s in output:\n%s", name, defines.String())
		}
	}

	mseUint8, err := dataset.LoadVector(p.MSEUint8File)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(mseUint8) != 200 {
		t.Errorf("Expected 200 uint8 errors, got %d", len(mseUint8))
	}

	uint8Stats, err := LoadThresholdStats(p.Uint8ThresholdFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(uint8Stats.Threshold-result.Threshold.Threshold) > 1e-12 {
		t.Errorf("Expected stored uint8 threshold %v, got %v", result.Threshold.Threshold, uint8Stats.Threshold)
	}

	var hint bytes.Buffer
	size, err := GenHeader(cfg, &hint)
	if err != nil {
		t.Fatalf("GenHeader failed: %v", err)
	}
	info, _ := os.Stat(p.QuantizedModelFile)
	if int64(size) != info.Size() {
		t.Errorf("Expected header of %d bytes, got %d", info.Size(), size)
	}
	header, _ := os.ReadFile(p.HeaderFile)
	if !strings.Contains(string(header), fmt.Sprintf("const unsigned int ae_model_data_len = %d;", size)) {
		t.Errorf("Expected length declaration in header")
	}
	if !strings.Contains(hint.String(), `#include "ae_model_data.h"`) {
		t.Errorf("Expected usage hint, got %q", hint.String())
	}

	db, err := database.Connect(cfg.Ledger)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer db.Close()

	ledger := database.NewLedgerStore(db)
	runs, err := ledger.ListThresholdRuns(10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 recorded runs, got %d", len(runs))
	}
	latest, err := ledger.LatestThresholdRun(models.PrecisionUint8)
	if err != nil || latest == nil {
		t.Fatalf("Expected a uint8 run, got %v (%v)", latest, err)
	}
	if latest.WindowCount != 200 {
		t.Errorf("Expected 200 windows in uint8 run, got %d", latest.WindowCount)
	}
}

func TestTrain_MissingInput(t *testing.T) {
	cfg := testConfig(t)

	_, err := Train(cfg)
	if !errors.Is(err, dataset.ErrMissingInput) {
		t.Fatalf("Expected ErrMissingInput, got %v", err)
	}
	if !strings.Contains(err.Error(), cfg.Pipeline.SensorCSV) {
		t.Errorf("Expected error to name %s, got %v", cfg.Pipeline.SensorCSV, err)
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	cfg := testConfig(t)
	samples := []models.Sample{{Temp: 25, Hum: 50}, {Temp: 26, Hum: 51}}
	if err := dataset.SaveSamples(cfg.Pipeline.SensorCSV, samples); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := Train(cfg); err == nil {
		t.Error("Expected error for a CSV shorter than one window")
	}
}

func TestQuantize_RegeneratesRepresentativeWindows(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Driver = "none"
	p := cfg.Pipeline

	if _, err := Simulate(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := Train(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := os.Remove(p.RepWindowsFile); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := Quantize(cfg); err != nil {
		t.Fatalf("Quantize failed: %v", err)
	}

	rep, err := dataset.LoadMatrix(p.RepWindowsFile)
	if err != nil {
		t.Fatalf("Expected regenerated windows: %v", err)
	}
	if rows, cols := rep.Dims(); rows != 200 || cols != 20 {
		t.Errorf("Expected 200x20 windows, got %dx%d", rows, cols)
	}
}

func TestQuantize_MissingModel(t *testing.T) {
	cfg := testConfig(t)

	if _, err := Quantize(cfg); !errors.Is(err, dataset.ErrMissingInput) {
		t.Errorf("Expected ErrMissingInput, got %v", err)
	}
}

func TestThreshold_CorruptModel(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.Pipeline.QuantizedModelFile, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := Threshold(cfg, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for a corrupt model file")
	}
}

func TestGenHeader_MissingInput(t *testing.T) {
	cfg := testConfig(t)

	if _, err := GenHeader(cfg, &bytes.Buffer{}); !errors.Is(err, dataset.ErrMissingInput) {
		t.Errorf("Expected ErrMissingInput, got %v", err)
	}
}
