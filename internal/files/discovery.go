package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo represents information about a discovered entry
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Discovery provides file discovery operations. Results are returned in
// listing order, which os.ReadDir yields sorted by name.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// resolve joins relative directories onto the base path
func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// ListEntries lists the immediate entries of dir, files and directories alike
func (d *Discovery) ListEntries(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		fi := FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		}
		if !fi.IsDir {
			fi.Size = info.Size()
		}
		out = append(out, fi)
	}

	return out, nil
}

// FindTickFiles finds the regular files in dir whose name ends in ext.
// The match is case-sensitive.
func (d *Discovery) FindTickFiles(dir, ext string) ([]FileInfo, error) {
	entries, err := d.ListEntries(dir)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ext) {
			continue
		}
		files = append(files, e)
	}
	return files, nil
}

// FirstN returns at most n files from the head of files
func FirstN(files []FileInfo, n int) []FileInfo {
	if n < 0 {
		n = 0
	}
	if len(files) <= n {
		return files
	}
	return files[:n]
}
