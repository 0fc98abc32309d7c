package loader

import (
	"context"
	"io"
	"log/slog"

	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/parser"
)

// DocumentLoader reads and strictly parses schema documents.
type DocumentLoader struct {
	files  domain.FileLoader
	parser *parser.Parser
	logger *slog.Logger
}

// NewDocumentLoader creates a DocumentLoader reading through files.
func NewDocumentLoader(files domain.FileLoader, logger *slog.Logger) *DocumentLoader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DocumentLoader{
		files:  files,
		parser: parser.NewParser(),
		logger: logger,
	}
}

// Load reads location and parses it. An empty document yields an empty mapping.
func (l *DocumentLoader) Load(ctx context.Context, location string) (*domain.Document, error) {
	data, err := l.files.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	doc, err := l.parser.Decode(location, data)
	if err != nil {
		return nil, err
	}
	if doc.Root == nil {
		doc.Root = map[string]any{}
	}
	l.logger.Debug("document loaded", "location", location, "bytes", len(data))
	return doc, nil
}

