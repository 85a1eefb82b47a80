package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Capstone-E1/climasense/internal/ml"
	"github.com/Capstone-E1/climasense/internal/models"
)

// ErrNoThreshold is returned when a stats file has no threshold entry
var ErrNoThreshold = errors.New("stats file has no threshold")

// WriteThresholdStats writes stats as "# title" followed by key=value lines
func WriteThresholdStats(w io.Writer, title string, stats models.ThresholdStats) error {
	_, err := fmt.Fprintf(w, "# %s\nmean=%s\nstd=%s\nk=%s\nthreshold=%s\n",
		title,
		formatFloat(stats.Mean),
		formatFloat(stats.Std),
		formatFloat(stats.K),
		formatFloat(stats.Threshold),
	)
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadThresholdStats parses a file written by WriteThresholdStats.
// Comments, blank lines and unknown keys are ignored.
func ReadThresholdStats(r io.Reader) (models.ThresholdStats, error) {
	var stats models.ThresholdStats
	found := false

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return stats, fmt.Errorf("line %d: expected key=value, got %q", line, text)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return stats, fmt.Errorf("line %d: invalid value for %s: %w", line, key, err)
		}

		switch strings.TrimSpace(key) {
		case "mean":
			stats.Mean = v
		case "std":
			stats.Std = v
		case "k":
			stats.K = v
		case "threshold":
			stats.Threshold = v
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, err
	}

	if !found {
		return stats, ErrNoThreshold
	}
	if math.IsNaN(stats.Threshold) || math.IsInf(stats.Threshold, 0) {
		return stats, fmt.Errorf("threshold must be finite, got %v", stats.Threshold)
	}
	return stats, nil
}

// FirmwareDefines renders the #define block the device code needs to
// quantize its input, dequantize the output and flag anomalies.
func FirmwareDefines(stats models.ThresholdStats, input, output ml.QuantParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#define ANOMALY_THRESHOLD %.6ff\n", stats.Threshold)
	fmt.Fprintf(&b, "#define INPUT_SCALE %sf\n", strconv.FormatFloat(input.Scale, 'g', -1, 32))
	fmt.Fprintf(&b, "#define INPUT_ZERO_POINT %d\n", input.ZeroPoint)
	fmt.Fprintf(&b, "#define OUTPUT_SCALE %sf\n", strconv.FormatFloat(output.Scale, 'g', -1, 32))
	fmt.Fprintf(&b, "#define OUTPUT_ZERO_POINT %d\n", output.ZeroPoint)
	return b.String()
}
