// Package resolver maps canonical schema references to schema nodes and
// checks the $ref graph below them.
package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/go-openapi/jsonpointer"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/cache"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
)

// Resolver resolves references through a per-run cache.
type Resolver struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(c *cache.Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{cache: c, logger: logger}
}

// Resolve returns the nodes addressed by ref: the direct children of every
// match when ref.Expand is set, otherwise the matches themselves. Every $ref
// reachable from a returned node must resolve and must not form an in-place
// cycle.
func (r *Resolver) Resolve(ctx context.Context, ref domain.SchemaRef) ([]domain.ResolvedNode, error) {
	doc, err := r.cache.GetOrLoad(ctx, ref.File)
	if err != nil {
		return nil, err
	}
	segs, err := refpath.Segments(ref.Selector)
	if err != nil {
		return nil, &domain.MalformedReferenceError{Ref: refpath.Format(ref), Err: err}
	}

	var matches []target
	if entry, ok := r.lookup(ref, segs); ok {
		matches = []target{{doc: doc, pointer: entry.Pointer, node: entry.Schema}}
	} else {
		matches, err = r.walk(ctx, ref, target{doc: doc, pointer: "", node: doc.Root}, segs)
		if err != nil {
			return nil, err
		}
		if len(matches) == 1 && matches[0].doc == doc && !hasWildcard(segs) {
			r.cache.Store(ref, matches[0].node, matches[0].pointer)
		}
	}

	var nodes []target
	for _, m := range matches {
		if ref.Expand {
			nodes = append(nodes, children(m)...)
		} else {
			nodes = append(nodes, m)
		}
	}

	g := newGraph(r)
	result := make([]domain.ResolvedNode, 0, len(nodes))
	for _, n := range nodes {
		if err := g.check(ctx, n); err != nil {
			return nil, err
		}
		result = append(result, domain.ResolvedNode{
			Ref:      domain.SchemaRef{File: n.doc.Location, Selector: refpath.FromPointer(n.pointer)},
			Pointer:  n.pointer,
			Schema:   n.node,
			Document: n.doc,
		})
	}
	r.logger.Debug("reference resolved", "ref", refpath.Format(ref), "nodes", len(result))
	return result, nil
}

func (r *Resolver) lookup(ref domain.SchemaRef, segs []refpath.Segment) (domain.CacheEntry, bool) {
	if hasWildcard(segs) {
		return domain.CacheEntry{}, false
	}
	return r.cache.Lookup(ref)
}

// walk applies segs to start, fanning out on wildcards. A mapping that lacks
// the next key but carries a $ref is replaced by the $ref target first.
func (r *Resolver) walk(ctx context.Context, ref domain.SchemaRef, start target, segs []refpath.Segment) ([]target, error) {
	current := []target{start}
	for _, seg := range segs {
		var next []target
		for _, t := range current {
			if seg.Wildcard {
				next = append(next, children(t)...)
				continue
			}
			child, err := r.step(ctx, ref, t, seg.Key)
			if err != nil {
				return nil, err
			}
			next = append(next, child)
		}
		current = next
	}
	return current, nil
}

func (r *Resolver) step(ctx context.Context, ref domain.SchemaRef, t target, key string) (target, error) {
	seen := map[nodeKey]bool{}
	for {
		switch val := t.node.(type) {
		case map[string]any:
			if child, ok := val[key]; ok {
				return target{doc: t.doc, pointer: t.pointer + "/" + jsonpointer.Escape(key), node: child}, nil
			}
			if refValue, ok := val["$ref"].(string); ok {
				if seen[t.key()] {
					return target{}, &domain.CycleError{Chain: []string{t.key().String(), t.key().String()}}
				}
				seen[t.key()] = true
				next, err := r.followRef(ctx, t, refValue)
				if err != nil {
					return target{}, err
				}
				t = next
				continue
			}
		case []any:
			if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(val) && strconv.Itoa(i) == key {
				return target{doc: t.doc, pointer: fmt.Sprintf("%s/%d", t.pointer, i), node: val[i]}, nil
			}
		}
		return target{}, &domain.RefResolutionError{
			Ref:    refpath.Format(ref),
			Reason: fmt.Sprintf("no node at %s/%s in %s", t.pointer, jsonpointer.Escape(key), t.doc.Location),
		}
	}
}

// children returns the direct children of a container in document order.
// Anything else expands to itself.
func children(t target) []target {
	switch val := t.node.(type) {
	case map[string]any:
		keys := t.doc.Keys(t.pointer, val)
		out := make([]target, 0, len(keys))
		for _, k := range keys {
			out = append(out, target{doc: t.doc, pointer: t.pointer + "/" + jsonpointer.Escape(k), node: val[k]})
		}
		return out
	case []any:
		out := make([]target, 0, len(val))
		for i, item := range val {
			out = append(out, target{doc: t.doc, pointer: fmt.Sprintf("%s/%d", t.pointer, i), node: item})
		}
		return out
	}
	return []target{t}
}

func hasWildcard(segs []refpath.Segment) bool {
	for _, s := range segs {
		if s.Wildcard {
			return true
		}
	}
	return false
}
