package writer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriter_Write(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.yaml")
	content := []byte("version: 1.0.0\n")

	writer := NewFileWriter()

	if err := writer.Write(testFile, content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("Write() content = %v, want %v", string(data), string(content))
	}
}

func TestFileWriter_Write_ReplacesAndKeepsMode(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "spec.yaml")
	if err := os.WriteFile(testFile, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	writer := NewFileWriter()
	if err := writer.Write(testFile, []byte("new")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, _ := os.ReadFile(testFile)
	if string(data) != "new" {
		t.Errorf("Write() content = %q, want new", data)
	}
	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestFileWriter_Write_CreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "subdir", "test.yaml")

	writer := NewFileWriter()
	if err := writer.Write(testFile, []byte("test content")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := os.Stat(testFile); os.IsNotExist(err) {
		t.Error("Write() should create directory if it doesn't exist")
	}
}
