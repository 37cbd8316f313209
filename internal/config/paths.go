package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved directories of a run.
// This is the single source of truth for every output file name.
type Paths struct {
	BaseDir   string
	InputDir  string
	OutputDir string
}

// NewPaths resolves the configured directories against baseDir.
// An empty baseDir means the current working directory.
func NewPaths(cfg PathsConfig, baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	return &Paths{
		BaseDir:   baseDir,
		InputDir:  resolve(baseDir, cfg.InputDir),
		OutputDir: resolve(baseDir, cfg.OutputDir),
	}, nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

// OutlierFileName returns the report file name for an exchange and symbol tag
func OutlierFileName(exchange, tag string) string {
	return exchange + "_" + tag + OutlierFileSuffix + OutputFileExtension
}

// GetOutlierPath returns the full path of an outlier report
func (p *Paths) GetOutlierPath(exchange, tag string) string {
	return p.OutputPath(OutlierFileName(exchange, tag))
}

// GetSummaryWorkbookPath returns the full path of the run summary workbook
func (p *Paths) GetSummaryWorkbookPath() string {
	return p.OutputPath(SummaryWorkbookName)
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Resolved paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("input_dir", p.InputDir),
		slog.String("output_dir", p.OutputDir))
}

// OutputPath returns the full path of a file in the output directory
func (p *Paths) OutputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.OutputDir, name)
}
