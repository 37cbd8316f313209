package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"tickoutlier/pkg/contracts/domain"
)

const (
	outliersSheet = "Outliers"
	windowsSheet  = "Windows"
)

var (
	workbookOutlierHeaders = []interface{}{
		"Exchange", "Tag", "Source File", "ID", "Timestamp", "Price", "Mean", "Deviation", "%Deviation",
	}
	workbookWindowHeaders = []interface{}{
		"Exchange", "Tag", "Source File", "Start", "Mean", "Std Dev", "Threshold", "Outliers",
	}
)

// WorkbookSink collects every written report of a run and saves them as one
// Excel workbook when detection completes
type WorkbookSink struct {
	path    string
	run     domain.Run
	logger  *slog.Logger
	reports []domain.OutlierReport
}

// NewWorkbookSink creates a sink that writes to path
func NewWorkbookSink(path string, run domain.Run, logger *slog.Logger) *WorkbookSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookSink{path: path, run: run, logger: logger}
}

// Name identifies the sink in errors
func (s *WorkbookSink) Name() string {
	return "workbook"
}

// Add queues a report for the workbook
func (s *WorkbookSink) Add(_ context.Context, report domain.OutlierReport) error {
	s.reports = append(s.reports, report)
	return nil
}

// Flush writes the workbook
func (s *WorkbookSink) Flush(ctx context.Context) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), outliersSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(windowsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := f.SetSheetRow(outliersSheet, "A1", &workbookOutlierHeaders); err != nil {
		return err
	}
	if err := f.SetSheetRow(windowsSheet, "A1", &workbookWindowHeaders); err != nil {
		return err
	}

	outlierRow := 2
	for i, report := range s.reports {
		summary := []interface{}{
			report.Exchange, report.Tag, report.SourceFile, report.Start,
			report.Mean, report.StdDev, report.Threshold, len(report.Rows),
		}
		if err := setRow(f, windowsSheet, i+2, summary); err != nil {
			return err
		}

		for _, row := range report.Rows {
			values := []interface{}{
				report.Exchange, report.Tag, report.SourceFile,
				row.ID, row.Timestamp, row.Price, row.Mean, row.Deviation, cellFloat(row.PercentDeviation),
			}
			if err := setRow(f, outliersSheet, outlierRow, values); err != nil {
				return err
			}
			outlierRow++
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       "Tick outliers",
		Description: fmt.Sprintf("run %s", s.run.ID),
		Created:     s.run.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return fmt.Errorf("failed to set workbook properties: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create workbook directory: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "Outlier summary workbook saved",
		slog.String("path", s.path),
		slog.Int("reports", len(s.reports)),
		slog.Int("outliers", outlierRow-2))

	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// cellFloat leaves undefined values as empty cells
func cellFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
