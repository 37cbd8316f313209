// Package exporter writes outlier reports.
//
// CSVWriter renders one report per file, {exchange}_{tag}_outliers.csv, with
// the header ID,Timestamp,Price,Mean,Deviation,%Deviation. Numbers use the
// shortest round-trip form and an undefined %Deviation is an empty cell, so
// scoring the same window twice produces byte-identical files.
//
// WorkbookSink gathers every report of a run into a single Excel workbook
// with an Outliers sheet (one row per outlier) and a Windows sheet (one row
// per reported window).
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(paths, files.NewManager(paths, logger), logger)
//	path, err := writer.WriteReport(ctx, report)
//
//	sink := exporter.NewWorkbookSink(paths.GetSummaryWorkbookPath(), run, logger)
//	err = sink.Add(ctx, report)
//	err = sink.Flush(ctx)
package exporter
