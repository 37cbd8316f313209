package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tickoutlier/internal/config"
)

// Manager writes run outputs under the configured output directory
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger}
}

// EnsureOutputDir creates the output directory if it doesn't exist
func (m *Manager) EnsureOutputDir() error {
	m.logger.Debug("Ensuring output directory exists",
		slog.String("path", m.paths.OutputDir))
	return os.MkdirAll(m.paths.OutputDir, 0755)
}

// WriteFile replaces the file at path with data. The content is written to a
// temporary file in the same directory and renamed into place, so readers
// never see a partial report.
func (m *Manager) WriteFile(path string, data []byte) error {
	fullPath := m.resolvePath(path)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", fullPath, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", fullPath, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", fullPath, err)
	}

	m.logger.Debug("Wrote file",
		slog.String("path", fullPath),
		slog.Int("size_bytes", len(data)))
	return nil
}

// resolvePath resolves relative paths against the output directory
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.paths.OutputDir, path)
}
