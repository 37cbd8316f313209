package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "tickoutlier/internal/errors"
)

// FileValidator checks the directories and files a run depends on before
// any work starts
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateInputDirectory checks that dir exists and is a directory. When
// pattern is set, the number of matching files is logged; finding none is
// not an error.
func (v *FileValidator) ValidateInputDirectory(dir string, pattern string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return apperrors.NewConfigError(fmt.Sprintf("input directory %s does not exist", dir), err).
			WithContext("directory", dir)
	}
	if err != nil {
		v.logger.Error("Failed to stat input directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to stat directory %s", dir), err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return apperrors.NewConfigError(fmt.Sprintf("%s is not a directory", dir), nil).
			WithContext("directory", dir)
	}

	if pattern == "" {
		return nil
	}

	count, err := v.CountFiles(dir, pattern)
	if err != nil {
		return err
	}
	if count == 0 {
		v.logger.Warn("No files matching pattern found",
			slog.String("directory", dir),
			slog.String("pattern", pattern))
		return nil
	}

	v.logger.Info("Input directory validated",
		slog.String("directory", dir),
		slog.Int("files_found", count),
		slog.String("pattern", pattern))
	return nil
}

// ValidateOutputDirectory ensures dir exists, creating it if needed, and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	testFile, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	testFile.Close()
	os.Remove(testFile.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// CountFiles counts regular files matching a glob pattern under dir
func (v *FileValidator) CountFiles(dir string, pattern string) (int, error) {
	fullPattern := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(fullPattern)
	if err != nil {
		v.logger.Error("Failed to count files",
			slog.String("pattern", fullPattern),
			slog.String("error", err.Error()))
		return 0, apperrors.NewConfigError("invalid file pattern", err).WithContext("pattern", pattern)
	}

	fileCount := 0
	for _, match := range matches {
		info, err := os.Stat(match)
		if err == nil && !info.IsDir() {
			fileCount++
		}
	}

	v.logger.Debug("Files counted",
		slog.String("directory", dir),
		slog.String("pattern", pattern),
		slog.Int("count", fileCount))
	return fileCount, nil
}
