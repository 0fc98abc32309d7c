package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yaccob/teds/internal/domain"
)

// FileWriter writes files atomically: data goes to a temporary file in the
// target directory which then replaces the target.
type FileWriter struct{}

// NewFileWriter creates a new FileWriter
func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

// Write replaces path with data, creating missing directories. An existing
// file keeps its permissions.
func (fw *FileWriter) Write(path string, data []byte) error {
	outputDir := filepath.Dir(path)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(outputDir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
