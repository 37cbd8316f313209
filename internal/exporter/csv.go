package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"tickoutlier/internal/config"
	"tickoutlier/internal/files"
	"tickoutlier/pkg/contracts/domain"
)

// OutlierHeaders is the header row of every outlier report
var OutlierHeaders = []string{"ID", "Timestamp", "Price", "Mean", "Deviation", "%Deviation"}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths   *config.Paths
	manager *files.Manager
	logger  *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths, manager *files.Manager, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, manager: manager, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers []string
	Records [][]string
}

// EncodeCSV renders headers and records into CSV bytes
func EncodeCSV(options WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes a CSV file under the output directory and returns its path
func (w *CSVWriter) WriteCSV(fileName string, options WriteOptions) (string, error) {
	data, err := EncodeCSV(options)
	if err != nil {
		return "", err
	}

	if err := w.manager.WriteFile(fileName, data); err != nil {
		return "", err
	}

	return w.paths.OutputPath(fileName), nil
}

// OutlierRecords converts report rows into CSV records in window order
func OutlierRecords(report domain.OutlierReport) [][]string {
	records := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		records = append(records, []string{
			row.ID,
			row.Timestamp,
			formatFloat(row.Price),
			formatFloat(row.Mean),
			formatFloat(row.Deviation),
			formatOptionalFloat(row.PercentDeviation),
		})
	}
	return records
}

// WriteReport writes {exchange}_{tag}_outliers.csv, replacing any earlier
// file of the same name
func (w *CSVWriter) WriteReport(ctx context.Context, report domain.OutlierReport) (string, error) {
	if err := checkNamePart("tag", report.Tag); err != nil {
		return "", err
	}
	if err := checkNamePart("exchange", report.Exchange); err != nil {
		return "", err
	}

	target := w.paths.GetOutlierPath(report.Exchange, report.Tag)
	path, err := w.WriteCSV(target, WriteOptions{
		Headers: OutlierHeaders,
		Records: OutlierRecords(report),
	})
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}

	w.logger.DebugContext(ctx, "Wrote outlier report",
		slog.String("path", path),
		slog.Int("record_count", len(report.Rows)))

	return path, nil
}

// checkNamePart rejects values that cannot be used inside a file name
func checkNamePart(field, value string) error {
	if value == "" || value == "." || value == ".." || strings.ContainsAny(value, "/\\\x00") {
		return fmt.Errorf("%s %q cannot be used in an output file name", field, value)
	}
	return nil
}
