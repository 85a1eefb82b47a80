package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/Capstone-E1/climasense/internal/dataset"
	"github.com/Capstone-E1/climasense/internal/export"
	"github.com/Capstone-E1/climasense/internal/ml"
	"github.com/Capstone-E1/climasense/internal/models"
)

func readInput(path string) ([]byte, error) {
	f, err := dataset.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func saveModel(path string, model *ml.LinearAutoencoder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := model.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// LoadModel reads the float model written by the train stage
func LoadModel(path string) (*ml.LinearAutoencoder, error) {
	f, err := dataset.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	model, err := ml.LoadLinearAutoencoder(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}

// LoadQuantizedModel reads the model written by the quantize stage
func LoadQuantizedModel(path string) (*ml.QuantizedModel, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	q, err := ml.UnmarshalQuantizedModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

func saveStats(path, title string, stats models.ThresholdStats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteThresholdStats(f, title, stats); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// LoadThresholdStats reads a threshold stats file
func LoadThresholdStats(path string) (models.ThresholdStats, error) {
	f, err := dataset.Open(path)
	if err != nil {
		return models.ThresholdStats{}, err
	}
	defer f.Close()

	stats, err := export.ReadThresholdStats(f)
	if err != nil {
		return models.ThresholdStats{}, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}

func saveReport(path string, report export.TrainingReport) error {
	f, err := export.NewExportService().GenerateTrainingReport(report)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.SaveAs(path)
}
