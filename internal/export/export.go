package export

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Capstone-E1/climasense/internal/models"
)

// ExportService builds spreadsheet and CSV exports
type ExportService struct{}

// NewExportService creates a new export service instance
func NewExportService() *ExportService {
	return &ExportService{}
}

// TrainingReport is the content of the workbook written by the train stage
type TrainingReport struct {
	GeneratedAt   time.Time
	SourceFile    string
	Samples       int
	TrainWindows  int
	ValWindows    int
	WindowLength  int
	Channels      int
	LatentDim     int
	Threshold     models.ThresholdStats
	ValidationMSE []float64
	Notes         string
}

// AnomalyExport is the content of the anomaly event workbook
type AnomalyExport struct {
	GeneratedAt time.Time
	Threshold   float64
	Events      []models.AnomalyEvent
}

var border = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

func headerStyle(f *excelize.File, color string, size float64) (int, error) {
	font := &excelize.Font{Bold: true, Color: "FFFFFF"}
	if size > 0 {
		font.Size = size
	}
	return f.NewStyle(&excelize.Style{
		Font:      font,
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, color string) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, header)
	}

	style, err := headerStyle(f, color, 0)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

// GenerateTrainingReport creates the workbook summarizing a training run.
// The caller owns the returned file and must Close it.
func (es *ExportService) GenerateTrainingReport(report TrainingReport) (*excelize.File, error) {
	f := excelize.NewFile()

	f.SetDocProps(&excelize.DocProperties{
		Category:       "ClimaSense Anomaly Detection",
		ContentStatus:  "Final",
		Created:        report.GeneratedAt.Format(time.RFC3339),
		Creator:        "ClimaSense Pipeline",
		Description:    "Reconstruction model training and validation summary",
		LastModifiedBy: "ClimaSense Pipeline",
		Modified:       report.GeneratedAt.Format(time.RFC3339),
		Subject:        "Autoencoder training report",
		Title:          "ClimaSense Training Report",
		Version:        "1.0",
	})

	if err := es.createTrainingSummarySheet(f, report); err != nil {
		f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := es.createValidationSheet(f, report); err != nil {
		f.Close()
		return nil, fmt.Errorf("validation sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}

func (es *ExportService) createTrainingSummarySheet(f *excelize.File, report TrainingReport) error {
	sheetName := "Summary"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	titleStyle, err := headerStyle(f, "4472C4", 14)
	if err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "ClimaSense Training Report")
	f.MergeCell(sheetName, "A1", "D1")
	f.SetCellStyle(sheetName, "A1", "D1", titleStyle)
	f.SetRowHeight(sheetName, 1, 25)

	rows := [][2]any{
		{"Generated At:", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Source File:", report.SourceFile},
		{"Samples:", report.Samples},
		{"Window Length:", report.WindowLength},
		{"Channels:", report.Channels},
		{"Latent Size:", report.LatentDim},
		{"Training Windows:", report.TrainWindows},
		{"Validation Windows:", report.ValWindows},
	}
	for i, row := range rows {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", i+3), row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+3), row[1])
	}

	start := len(rows) + 4
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", start), "Validation Threshold")
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", start), fmt.Sprintf("A%d", start), titleStyle)

	stats := [][2]any{
		{"MSE mean:", report.Threshold.Mean},
		{"MSE std:", report.Threshold.Std},
		{"k:", report.Threshold.K},
		{"Threshold:", report.Threshold.Threshold},
	}
	for i, row := range stats {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", start+1+i), row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", start+1+i), row[1])
	}

	if report.Notes != "" {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", start+len(stats)+2), report.Notes)
	}

	f.SetColWidth(sheetName, "A", "A", 22)
	f.SetColWidth(sheetName, "B", "D", 18)
	return nil
}

func (es *ExportService) createValidationSheet(f *excelize.File, report TrainingReport) error {
	sheetName := "Validation MSE"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := writeHeaderRow(f, sheetName, []string{"Window", "MSE", "Above Threshold"}, "70AD47"); err != nil {
		return err
	}

	for i, mse := range report.ValidationMSE {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), i)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), mse)
		flagged := "no"
		if report.Threshold.IsAnomalous(mse) {
			flagged = "yes"
		}
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), flagged)
	}

	f.SetColWidth(sheetName, "A", "C", 16)
	return nil
}

// GenerateAnomalyExcel creates a workbook listing detected anomaly events.
// The caller owns the returned file and must Close it.
func (es *ExportService) GenerateAnomalyExcel(data AnomalyExport) (*excelize.File, error) {
	f := excelize.NewFile()

	f.SetDocProps(&excelize.DocProperties{
		Category:    "ClimaSense Anomaly Detection",
		Created:     data.GeneratedAt.Format(time.RFC3339),
		Creator:     "ClimaSense Monitor",
		Description: "Anomaly events detected by the live monitor",
		Title:       "ClimaSense Anomaly Export",
		Version:     "1.0",
	})

	sheetName := "Anomalies"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	headers := []string{"Detected At", "Device", "Temperature (°C)", "Humidity (%)", "MSE", "Threshold", "Severity"}
	if err := writeHeaderRow(f, sheetName, headers, "C55A11"); err != nil {
		f.Close()
		return nil, err
	}

	for i, event := range data.Events {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), event.DetectedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), event.DeviceID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), event.Temp)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), event.Hum)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), event.MSE)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), event.Threshold)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), event.Severity)
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "G", 15)

	f.SetActiveSheet(0)
	return f, nil
}

// GenerateCSV creates CSV records for anomaly events
func (es *ExportService) GenerateCSV(events []models.AnomalyEvent) ([][]string, error) {
	records := [][]string{
		{"Detected At", "Device", "Temperature", "Humidity", "MSE", "Threshold", "Severity"},
	}

	for _, event := range events {
		records = append(records, []string{
			event.DetectedAt.Format("2006-01-02 15:04:05"),
			event.DeviceID,
			strconv.FormatFloat(event.Temp, 'f', 2, 64),
			strconv.FormatFloat(event.Hum, 'f', 2, 64),
			strconv.FormatFloat(event.MSE, 'f', 6, 64),
			strconv.FormatFloat(event.Threshold, 'f', 6, 64),
			event.Severity,
		})
	}

	return records, nil
}

// WriteCSV writes CSV data to a writer
func (es *ExportService) WriteCSV(w *csv.Writer, records [][]string) error {
	return w.WriteAll(records)
}
