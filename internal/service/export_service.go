package service

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/pkg/export"
)

// ExportService renders cohort reports into downloadable formats.
type ExportService struct {
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var reportHeaders = []string{"Student", "Level", "Critical Met", "Desirable Met", "Completion %", "Status"}

// dataset flattens a cohort report into the tabular shape both exporters
// consume.
func (s *ExportService) dataset(report *CohortReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Results))
	for _, result := range report.Results {
		status := "open"
		if result.Finalized {
			status = "finalized"
		}
		rows = append(rows, map[string]string{
			"Student":       result.StudentName,
			"Level":         strconv.Itoa(result.AchievedLevel),
			"Critical Met":  fmt.Sprintf("%d/%d", result.CriticalMet, result.TotalCritical),
			"Desirable Met": fmt.Sprintf("%d/%d", result.DesirableMet, result.TotalDesirable),
			"Completion %":  fmt.Sprintf("%.1f", result.PercentComplete),
			"Status":        status,
		})
	}
	return export.Dataset{Headers: reportHeaders, Rows: rows}
}

// RenderCSV renders the report as CSV bytes.
func (s *ExportService) RenderCSV(report *CohortReport) ([]byte, error) {
	return s.csv.Render(s.dataset(report))
}

// RenderPDF renders the report as a PDF document titled after the cohort.
func (s *ExportService) RenderPDF(report *CohortReport) ([]byte, error) {
	title := fmt.Sprintf("Competency Report - %s", report.CohortName)
	return s.pdf.Render(s.dataset(report), title)
}
