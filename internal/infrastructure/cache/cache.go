// Package cache memoizes parsed schema documents and indexed schema nodes
// for the lifetime of one run.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-openapi/jsonpointer"
	"github.com/mohae/deepcopy"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
)

// containers whose direct children are indexed eagerly on first load.
var containers = []string{"/components/schemas", "/definitions", "/$defs"}

// Stats counts cache activity.
type Stats struct {
	Loads   int
	Hits    int
	Misses  int
	Indexed int
}

type projectionKey struct {
	location    string
	stripFormat bool
}

// Cache wraps a DocumentLoader. It is not safe for concurrent use.
type Cache struct {
	loader  domain.DocumentLoader
	checker domain.DocumentChecker
	logger  *slog.Logger
	now     func() time.Time

	docs        map[string]*domain.Document
	entries     map[domain.SchemaRef]domain.CacheEntry
	projections map[projectionKey][]byte
	stats       Stats
}

// Option configures a Cache.
type Option func(*Cache)

// WithChecker runs checker once on every newly loaded document.
func WithChecker(checker domain.DocumentChecker) Option {
	return func(c *Cache) {
		c.checker = checker
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used for CacheEntry.LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache reading through loader.
func New(loader domain.DocumentLoader, opts ...Option) *Cache {
	c := &Cache{
		loader:      loader,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		docs:        make(map[string]*domain.Document),
		entries:     make(map[domain.SchemaRef]domain.CacheEntry),
		projections: make(map[projectionKey][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the document at location, loading and indexing it on
// first use.
func (c *Cache) GetOrLoad(ctx context.Context, location string) (*domain.Document, error) {
	if doc, ok := c.docs[location]; ok {
		return doc, nil
	}
	doc, err := c.loader.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	c.stats.Loads++
	if c.checker != nil {
		if err := c.checker.Check(ctx, doc); err != nil {
			return nil, err
		}
	}
	c.docs[location] = doc
	indexed := c.index(doc)
	c.logger.Debug("schema document cached", "location", location, "indexed", indexed)
	return doc, nil
}

// Document returns an already loaded document.
func (c *Cache) Document(location string) (*domain.Document, bool) {
	doc, ok := c.docs[location]
	return doc, ok
}

// index registers the well-known schema containers and their children.
func (c *Cache) index(doc *domain.Document) int {
	loadedAt := c.now()
	n := 0
	for _, ptr := range containers {
		node, ok := Walk(doc.Root, ptr)
		if !ok {
			continue
		}
		m, ok := node.(map[string]any)
		if !ok {
			continue
		}
		c.entries[refFor(doc.Location, ptr)] = domain.CacheEntry{Schema: m, Pointer: ptr, LoadedAt: loadedAt}
		n++
		for _, key := range doc.Keys(ptr, m) {
			child := ptr + "/" + jsonpointer.Escape(key)
			c.entries[refFor(doc.Location, child)] = domain.CacheEntry{Schema: m[key], Pointer: child, LoadedAt: loadedAt}
			n++
		}
	}
	c.stats.Indexed += n
	return n
}

func refFor(location, pointer string) domain.SchemaRef {
	return domain.SchemaRef{File: location, Selector: refpath.FromPointer(pointer)}
}

// Lookup returns the indexed entry for a concrete reference.
func (c *Cache) Lookup(ref domain.SchemaRef) (domain.CacheEntry, bool) {
	key := domain.SchemaRef{File: ref.File, Selector: ref.Selector}
	entry, ok := c.entries[key]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return entry, ok
}

// Store memoizes a node found by a fallback walk.
func (c *Cache) Store(ref domain.SchemaRef, schema any, pointer string) domain.CacheEntry {
	entry := domain.CacheEntry{Schema: schema, Pointer: pointer, LoadedAt: c.now()}
	c.entries[domain.SchemaRef{File: ref.File, Selector: ref.Selector}] = entry
	return entry
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// LogStats writes the counters at debug level.
func (c *Cache) LogStats() {
	c.logger.Debug("schema cache stats",
		"documents", len(c.docs),
		"loads", c.stats.Loads,
		"hits", c.stats.Hits,
		"misses", c.stats.Misses,
		"indexed", c.stats.Indexed,
	)
}

// JSON returns the JSON projection of the document at location. With
// stripFormat every "format" assertion is removed, so that a validator
// cannot enforce it whatever the declared dialect.
func (c *Cache) JSON(ctx context.Context, location string, stripFormat bool) ([]byte, error) {
	key := projectionKey{location: location, stripFormat: stripFormat}
	if data, ok := c.projections[key]; ok {
		return data, nil
	}
	doc, err := c.GetOrLoad(ctx, location)
	if err != nil {
		return nil, err
	}
	root := doc.Root
	if stripFormat {
		root = deepcopy.Copy(doc.Root)
		stripFormats(root, false)
	}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode %s as JSON: %w", location, err)
	}
	c.projections[key] = data
	return data, nil
}

// Walk follows a JSON pointer through plain values.
func Walk(root any, pointer string) (any, bool) {
	if pointer == "" {
		return root, true
	}
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, false
	}
	v, _, err := p.Get(root)
	if err != nil {
		return nil, false
	}
	return v, true
}

// keywords whose values are instance data rather than schemas.
var dataKeywords = map[string]bool{
	"const":    true,
	"enum":     true,
	"default":  true,
	"examples": true,
	"example":  true,
}

// keywords whose values map names to schemas.
var nameMaps = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"$defs":             true,
	"definitions":       true,
	"dependentSchemas":  true,
}

func stripFormats(v any, names bool) {
	switch val := v.(type) {
	case map[string]any:
		if names {
			for _, child := range val {
				stripFormats(child, false)
			}
			return
		}
		if _, ok := val["format"].(string); ok {
			delete(val, "format")
		}
		for k, child := range val {
			if dataKeywords[k] {
				continue
			}
			stripFormats(child, nameMaps[k])
		}
	case []any:
		for _, item := range val {
			stripFormats(item, false)
		}
	}
}
