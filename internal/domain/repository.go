package domain

import "context"

// FileLoader loads raw bytes from the filesystem or a URL.
type FileLoader interface {
	Load(ctx context.Context, location string) ([]byte, error)
}

// DocumentLoader loads and parses a document.
type DocumentLoader interface {
	Load(ctx context.Context, location string) (*Document, error)
}

// FileWriter writes files to the filesystem.
type FileWriter interface {
	Write(path string, data []byte) error
}

// DocumentChecker inspects a freshly loaded schema document.
type DocumentChecker interface {
	Check(ctx context.Context, doc *Document) error
}

// Validator validates a payload against a resolved schema node. The same
// capability serves both regimes: enforceFormat selects strict validation.
// A nil Rejection means the payload was accepted; a non-nil error is fatal.
type Validator interface {
	Validate(ctx context.Context, node *ResolvedNode, payload any, enforceFormat bool) (*Rejection, error)
}

// RefResolver resolves a canonical reference to its schema node(s).
type RefResolver interface {
	Resolve(ctx context.Context, ref SchemaRef) ([]ResolvedNode, error)
}

// StructureValidator checks the layout of a whole document.
type StructureValidator interface {
	Validate(path string, root any) error
}
