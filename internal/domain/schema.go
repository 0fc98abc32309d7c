package domain

import (
	"sort"
	"time"
)

// SchemaRef is the canonical address of one or more schema nodes.
//
// File is an absolute, cleaned local path or an absolute http(s) URL.
// Selector is the canonical selector produced by the refpath package; two
// syntaxes addressing the same node yield the same Selector. When Expand is
// set the reference stands for the direct children of the selected node.
type SchemaRef struct {
	File     string
	Selector string
	Expand   bool
}

// Document is a parsed schema or test-spec document.
type Document struct {
	// Location is the canonical file path or URL the document was read from.
	Location string
	// Root holds plain values: map[string]any, []any, string, int, float64, bool or nil.
	Root any
	// Order records mapping key order keyed by the JSON pointer of each mapping.
	Order map[string][]string
}

// Keys returns the keys of the mapping at pointer in document order.
// Maps not recorded in Order fall back to sorted keys.
func (d *Document) Keys(pointer string, m map[string]any) []string {
	if d != nil && d.Order != nil {
		if keys, ok := d.Order[pointer]; ok && len(keys) == len(m) {
			return keys
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolvedNode is a schema subtree together with the document that owns it.
// It is shared read-only by all consumers within a run.
type ResolvedNode struct {
	Ref      SchemaRef
	Pointer  string
	Schema   any
	Document *Document
}

// CacheEntry is one indexed schema subtree.
type CacheEntry struct {
	Schema   any
	Pointer  string
	LoadedAt time.Time
}
