package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yaccob/teds/internal/domain"
)

// OpenAPIChecker validates documents declaring "openapi: 3.0.x" with
// kin-openapi. Other documents pass unchecked.
type OpenAPIChecker struct {
	files  domain.FileLoader
	logger *slog.Logger
}

// NewOpenAPIChecker creates a checker that reads external references
// through files, so that the network policy applies to them as well.
func NewOpenAPIChecker(files domain.FileLoader, logger *slog.Logger) *OpenAPIChecker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OpenAPIChecker{files: files, logger: logger}
}

// Check implements domain.DocumentChecker.
func (c *OpenAPIChecker) Check(ctx context.Context, doc *domain.Document) error {
	root, ok := doc.Root.(map[string]any)
	if !ok {
		return nil
	}
	version, _ := root["openapi"].(string)
	if !strings.HasPrefix(version, "3.") {
		return nil
	}
	if !strings.HasPrefix(version, "3.0") {
		c.logger.Debug("skipping OpenAPI check", "location", doc.Location, "openapi", version)
		return nil
	}

	data, err := json.Marshal(doc.Root)
	if err != nil {
		return &domain.InvalidDocumentError{Location: doc.Location, Err: err}
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true
	loader.ReadFromURIFunc = func(_ *openapi3.Loader, location *url.URL) ([]byte, error) {
		if location.Scheme == "http" || location.Scheme == "https" {
			return c.files.Load(ctx, location.String())
		}
		return c.files.Load(ctx, location.Path)
	}

	spec, err := loader.LoadFromDataWithPath(data, documentURL(doc.Location))
	if err != nil {
		return &domain.InvalidDocumentError{Location: doc.Location, Err: fmt.Errorf("load: %w", err)}
	}
	if err := spec.Validate(ctx); err != nil {
		return &domain.InvalidDocumentError{Location: doc.Location, Err: err}
	}
	c.logger.Debug("OpenAPI document valid", "location", doc.Location)
	return nil
}

func documentURL(location string) *url.URL {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u
	}
	return &url.URL{Path: location}
}
