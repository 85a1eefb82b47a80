// Package pipeline implements the offline stages: each one reads the
// artifacts of the previous stage and writes the next generation.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Capstone-E1/climasense/config"
	"github.com/Capstone-E1/climasense/internal/database"
	"github.com/Capstone-E1/climasense/internal/dataset"
	"github.com/Capstone-E1/climasense/internal/export"
	"github.com/Capstone-E1/climasense/internal/ml"
	"github.com/Capstone-E1/climasense/internal/models"
	"github.com/Capstone-E1/climasense/internal/simulator"
)

// ConversionHints lists the usual reasons a quantized conversion fails
var ConversionHints = []string{
	"Representative dataset shape mismatch (should be (N, WINDOW*2))",
	"Model file is not a linear autoencoder written by the train stage",
	"Calibration range is degenerate (constant representative windows)",
}

// TrainResult summarizes a training run
type TrainResult struct {
	Samples      int
	TrainWindows int
	ValWindows   int
	Threshold    models.ThresholdStats
	RepWindows   int
}

// ThresholdResult is the uint8 threshold together with the tensor parameters
// the firmware needs
type ThresholdResult struct {
	Threshold models.ThresholdStats
	Input     ml.TensorDetails
	Output    ml.TensorDetails
}

// Simulate writes the synthetic sensor CSV and returns the number of samples
func Simulate(cfg *config.Config) (int, error) {
	p := cfg.Pipeline
	sim := simulator.New(simulator.Config{
		NormalSamples:  p.NormalSamples,
		AnomalySamples: p.AnomalySamples,
		Seed:           p.SimulatorSeed,
	})

	samples := sim.Generate()
	if err := dataset.SaveSamples(p.SensorCSV, samples); err != nil {
		return 0, err
	}

	log.Printf("✅ Saved %d samples to %s", len(samples), p.SensorCSV)
	return len(samples), nil
}

// Train fits the reconstruction model and writes the model, the validation
// errors, the representative windows, the float threshold and the report.
func Train(cfg *config.Config) (*TrainResult, error) {
	p := cfg.Pipeline

	samples, err := dataset.LoadSamples(p.SensorCSV)
	if err != nil {
		return nil, err
	}
	log.Printf("📥 Loaded %d samples from %s", len(samples), p.SensorCSV)

	windows, err := ml.MakeWindows(models.SamplesToSeries(samples), p.WindowLength)
	if err != nil {
		return nil, err
	}

	train, val, err := ml.SplitWindows(windows, p.ValFraction, p.SplitSeed)
	if err != nil {
		return nil, err
	}
	trainRows, _ := train.Dims()
	valRows, _ := val.Dims()
	log.Printf("🪟 %d windows of %d samples: %d train, %d validation", trainRows+valRows, p.WindowLength, trainRows, valRows)

	model, err := ml.FitLinearAutoencoder(train, p.LatentDim)
	if err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}
	if err := saveModel(p.ModelFile, model); err != nil {
		return nil, err
	}
	log.Printf("💾 Saved %s", p.ModelFile)

	mseVal, err := ml.ReconstructionErrors(model, ml.Rows(val), 0, nil)
	if err != nil {
		return nil, err
	}
	if err := dataset.SaveVector(p.MSEValFile, mseVal); err != nil {
		return nil, err
	}
	log.Printf("💾 Saved %s (use this to compute threshold: mean + k*std)", p.MSEValFile)

	stats, err := ml.ComputeThreshold(mseVal, p.KFactor)
	if err != nil {
		return nil, err
	}
	log.Printf("📊 Validation MSE stats: mean=%.6e, std=%.6e", stats.Mean, stats.Std)
	log.Printf("📊 Suggested threshold (mean + %g*std) = %.6e", stats.K, stats.Threshold)

	if err := saveStats(p.FloatThresholdFile, "float model threshold stats", stats); err != nil {
		return nil, err
	}

	rep := ml.FirstRows(train, p.RepWindows)
	if err := dataset.SaveMatrix(p.RepWindowsFile, rep); err != nil {
		return nil, err
	}
	repRows, repCols := rep.Dims()
	log.Printf("💾 Saved %s with shape (%d, %d)", p.RepWindowsFile, repRows, repCols)

	report := export.TrainingReport{
		GeneratedAt:   time.Now(),
		SourceFile:    p.SensorCSV,
		Samples:       len(samples),
		TrainWindows:  trainRows,
		ValWindows:    valRows,
		WindowLength:  p.WindowLength,
		Channels:      len(models.ChannelNames),
		LatentDim:     p.LatentDim,
		Threshold:     stats,
		ValidationMSE: mseVal,
		Notes:         "Linear autoencoder (principal subspace projection)",
	}
	if err := saveReport(p.TrainingReportFile, report); err != nil {
		// the report is informational, the artifacts above are what later stages need
		log.Printf("⚠️  Warning: Failed to write training report: %v", err)
	} else {
		log.Printf("📄 Saved %s", p.TrainingReportFile)
	}

	database.RecordThresholdRun(cfg.Ledger, models.NewThresholdRun("train", models.PrecisionFloat, stats, p.MSEValFile))

	return &TrainResult{
		Samples:      len(samples),
		TrainWindows: trainRows,
		ValWindows:   valRows,
		Threshold:    stats,
		RepWindows:   repRows,
	}, nil
}

// Quantize converts the trained model into its full-integer form
func Quantize(cfg *config.Config) (*ml.QuantizedModel, error) {
	p := cfg.Pipeline

	log.Println("📥 Loading model ...")
	model, err := LoadModel(p.ModelFile)
	if err != nil {
		return nil, err
	}
	log.Println("✅ Model loaded.")

	rep, err := representativeWindows(p)
	if err != nil {
		return nil, err
	}
	rows, cols := rep.Dims()
	log.Printf("📥 Loaded %s with shape (%d, %d)", p.RepWindowsFile, rows, cols)

	log.Println("🔧 Starting conversion with full integer quantization ...")
	q, err := ml.Convert(model, rep, p.CalibrationWindows)
	if err != nil {
		return nil, err
	}

	data, err := q.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode quantized model: %w", err)
	}
	if err := os.WriteFile(p.QuantizedModelFile, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", p.QuantizedModelFile, err)
	}

	log.Printf("✅ Wrote %s (uint8, full integer quantized, %d bytes)", p.QuantizedModelFile, len(data))
	return q, nil
}

// IsConversionError reports whether err came from the converter rather than I/O
func IsConversionError(err error) bool {
	return errors.Is(err, ml.ErrConversion) || errors.Is(err, ml.ErrRepresentativeShape)
}

// representativeWindows loads the saved windows, regenerating them from the
// sensor CSV when the file is missing.
func representativeWindows(p config.PipelineConfig) (*mat.Dense, error) {
	rep, err := dataset.LoadMatrix(p.RepWindowsFile)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, dataset.ErrMissingInput) {
		return nil, err
	}

	log.Printf("⚠️  Representative windows file '%s' not found.", p.RepWindowsFile)
	log.Printf("🔄 Attempting to generate %s from %s ...", p.RepWindowsFile, p.SensorCSV)

	samples, err := dataset.LoadSamples(p.SensorCSV)
	if err != nil {
		return nil, fmt.Errorf("cannot regenerate representative windows: %w", err)
	}
	windows, err := ml.MakeWindows(models.SamplesToSeries(samples), p.WindowLength)
	if err != nil {
		return nil, fmt.Errorf("cannot regenerate representative windows: %w", err)
	}

	rep = ml.FirstRows(windows, p.RepWindows)
	if err := dataset.SaveMatrix(p.RepWindowsFile, rep); err != nil {
		return nil, err
	}
	rows, cols := rep.Dims()
	log.Printf("💾 Saved representative windows to %s with shape (%d, %d)", p.RepWindowsFile, rows, cols)
	return rep, nil
}

// Threshold scores the representative windows with the quantized model and
// writes the uint8 threshold. The firmware #define block goes to out.
func Threshold(cfg *config.Config, out io.Writer) (*ThresholdResult, error) {
	p := cfg.Pipeline

	q, err := LoadQuantizedModel(p.QuantizedModelFile)
	if err != nil {
		return nil, err
	}
	input, output := q.InputDetails(), q.OutputDetails()
	log.Printf("Input:  scale=%v, zero_point=%d", input.Quant.Scale, input.Quant.ZeroPoint)
	log.Printf("Output: scale=%v, zero_point=%d", output.Quant.Scale, output.Quant.ZeroPoint)

	rep, err := dataset.LoadMatrix(p.RepWindowsFile)
	if err != nil {
		return nil, err
	}
	windows := ml.Rows(rep)
	log.Printf("📥 Loaded %d windows from %s", len(windows), p.RepWindowsFile)

	mses, err := ml.ReconstructionErrors(q, windows, p.ProgressEvery, func(done, total int) {
		log.Printf("  Processed %d/%d windows...", done, total)
	})
	if err != nil {
		return nil, err
	}

	stats, err := ml.ComputeThreshold(mses, p.KFactor)
	if err != nil {
		return nil, err
	}

	log.Println("==================================================")
	log.Println("Results (uint8 quantized model):")
	log.Printf("  MSE mean:  %.6f", stats.Mean)
	log.Printf("  MSE std:   %.6f", stats.Std)
	log.Printf("  Threshold (mean + %g*std): %.6f", stats.K, stats.Threshold)
	log.Println("==================================================")

	if err := saveStats(p.Uint8ThresholdFile, "uint8 model threshold stats", stats); err != nil {
		return nil, err
	}
	log.Printf("💾 Saved to %s", p.Uint8ThresholdFile)

	if err := dataset.SaveVector(p.MSEUint8File, mses); err != nil {
		return nil, err
	}
	log.Printf("💾 Saved MSE array to %s", p.MSEUint8File)

	fmt.Fprintln(out, "// Copy this to your device code:")
	fmt.Fprint(out, export.FirmwareDefines(stats, input.Quant, output.Quant))

	database.RecordThresholdRun(cfg.Ledger, models.NewThresholdRun("threshold", models.PrecisionUint8, stats, p.Uint8ThresholdFile))

	return &ThresholdResult{Threshold: stats, Input: input, Output: output}, nil
}

// GenHeader embeds the quantized model file into a C header. The bytes are
// copied verbatim.
func GenHeader(cfg *config.Config, out io.Writer) (int, error) {
	p := cfg.Pipeline

	data, err := readInput(p.QuantizedModelFile)
	if err != nil {
		return 0, err
	}
	log.Printf("📥 Read %s: %d bytes", p.QuantizedModelFile, len(data))

	opts := export.HeaderOptions{
		Source:    filepath.Base(p.QuantizedModelFile),
		ArrayName: p.HeaderArrayName,
	}

	f, err := os.Create(p.HeaderFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", p.HeaderFile, err)
	}
	if err := export.WriteHeader(f, data, opts); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write %s: %w", p.HeaderFile, err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	log.Printf("✅ Wrote %s", p.HeaderFile)
	fmt.Fprint(out, export.UsageHint(filepath.Base(p.HeaderFile), opts))
	return len(data), nil
}
