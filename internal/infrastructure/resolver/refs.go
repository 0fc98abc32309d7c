package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/cache"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
)

// target is a schema node located in a loaded document.
type target struct {
	doc     *domain.Document
	pointer string
	node    any
}

func (t target) key() nodeKey {
	return nodeKey{file: t.doc.Location, pointer: t.pointer}
}

// followRef resolves the $ref value found at from.
func (r *Resolver) followRef(ctx context.Context, from target, ref string) (target, error) {
	location, fragment, _ := strings.Cut(ref, "#")

	doc := from.doc
	if location != "" {
		if !refpath.IsURL(location) {
			if unescaped, err := url.PathUnescape(location); err == nil {
				location = unescaped
			}
		}
		resolved := refpath.ResolveFrom(from.doc.Location, location)
		loaded, err := r.cache.GetOrLoad(ctx, resolved)
		if err != nil {
			return target{}, fmt.Errorf("failed to resolve $ref %q at %s: %w", ref, from.key(), err)
		}
		doc = loaded
	}

	unresolvable := func(reason string) error {
		return &domain.RefResolutionError{Ref: ref, From: from.key().String(), Reason: reason}
	}

	switch {
	case fragment == "":
		return target{doc: doc, pointer: "", node: doc.Root}, nil

	case strings.HasPrefix(fragment, "/"):
		pointer, err := url.PathUnescape(fragment)
		if err != nil {
			return target{}, unresolvable(fmt.Sprintf("invalid percent-encoding in fragment: %v", err))
		}
		node, ok := cache.Walk(doc.Root, pointer)
		if !ok {
			return target{}, unresolvable(fmt.Sprintf("no node at #%s in %s", pointer, doc.Location))
		}
		return target{doc: doc, pointer: pointer, node: node}, nil

	default:
		anchor, err := url.PathUnescape(fragment)
		if err != nil {
			anchor = fragment
		}
		if found, ok := findAnchor(doc, "", doc.Root, anchor); ok {
			return found, nil
		}
		return target{}, unresolvable(fmt.Sprintf("no $anchor %q in %s", anchor, doc.Location))
	}
}

// findAnchor searches the document in key order for a schema declaring $anchor.
func findAnchor(doc *domain.Document, pointer string, node any, anchor string) (target, bool) {
	switch val := node.(type) {
	case map[string]any:
		if a, ok := val["$anchor"].(string); ok && a == anchor {
			return target{doc: doc, pointer: pointer, node: val}, true
		}
		for _, k := range doc.Keys(pointer, val) {
			if dataKeywords[k] {
				continue
			}
			if found, ok := findAnchor(doc, pointer+"/"+jsonpointer.Escape(k), val[k], anchor); ok {
				return found, true
			}
		}
	case []any:
		for i, item := range val {
			if found, ok := findAnchor(doc, fmt.Sprintf("%s/%d", pointer, i), item, anchor); ok {
				return found, true
			}
		}
	}
	return target{}, false
}
