package domain

import (
	"path/filepath"
	"strings"
)

// FileFormat is the serialization format of a document on disk.
type FileFormat string

const (
	FormatYAML FileFormat = "yaml"
	FormatJSON FileFormat = "json"
)

// DetectFormat derives the format from the file extension. YAML is the default.
func DetectFormat(filePath string) FileFormat {
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return FormatJSON
	}
	return FormatYAML
}
