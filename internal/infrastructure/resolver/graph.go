package resolver

import (
	"context"
	"fmt"

	"github.com/go-openapi/jsonpointer"
	"github.com/yaccob/teds/internal/domain"
)

// Keywords whose subschemas apply to the same instance location. A $ref loop
// through these never bottoms out.
var inPlaceArrays = map[string]bool{"allOf": true, "anyOf": true, "oneOf": true}

var inPlaceSingles = map[string]bool{"not": true, "if": true, "then": true, "else": true}

// Keywords holding instance data rather than schemas.
var dataKeywords = map[string]bool{
	"const":    true,
	"enum":     true,
	"default":  true,
	"examples": true,
	"example":  true,
}

// Keywords mapping names to schemas.
var nameMaps = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"$defs":             true,
	"definitions":       true,
}

// graph checks the $ref graph below resolved nodes. Both sets are shared by
// all nodes of one Resolve call: visited holds every node whose scan has
// started, done those whose scan finished without finding a cycle.
type graph struct {
	r       *Resolver
	visited map[nodeKey]bool
	done    map[nodeKey]bool
}

func newGraph(r *Resolver) *graph {
	return &graph{r: r, visited: make(map[nodeKey]bool), done: make(map[nodeKey]bool)}
}

func (g *graph) check(ctx context.Context, t target) error {
	if g.done[t.key()] {
		return nil
	}
	return g.scan(ctx, t, NewRefContext(t.key()))
}

// scan visits the schema t. rc is the in-place chain ending at t.
func (g *graph) scan(ctx context.Context, t target, rc RefContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.visited[t.key()] = true

	m, ok := t.node.(map[string]any)
	if !ok {
		g.done[t.key()] = true
		return nil
	}
	for _, k := range t.doc.Keys(t.pointer, m) {
		v := m[k]
		at := t.child(k, v)
		switch {
		case k == "$ref":
			refValue, ok := v.(string)
			if !ok {
				continue
			}
			next, err := g.r.followRef(ctx, t, refValue)
			if err != nil {
				return err
			}
			if err := g.enter(ctx, next, rc.WithRef(next.key()), rc); err != nil {
				return err
			}

		case inPlaceArrays[k]:
			items, ok := v.([]any)
			if !ok {
				continue
			}
			for i, item := range items {
				sub := at.child(fmt.Sprint(i), item)
				if err := g.enter(ctx, sub, rc.WithInPlace(sub.key()), rc); err != nil {
					return err
				}
			}

		case inPlaceSingles[k]:
			if err := g.enter(ctx, at, rc.WithInPlace(at.key()), rc); err != nil {
				return err
			}

		case k == "dependentSchemas":
			if err := g.eachNamed(ctx, at, func(sub target) error {
				return g.enter(ctx, sub, rc.WithInPlace(sub.key()), rc)
			}); err != nil {
				return err
			}

		case dataKeywords[k]:

		case nameMaps[k]:
			if err := g.eachNamed(ctx, at, func(sub target) error {
				return g.descend(ctx, sub)
			}); err != nil {
				return err
			}

		default:
			if err := g.descend(ctx, at); err != nil {
				return err
			}
		}
	}
	g.done[t.key()] = true
	return nil
}

// enter follows an in-place edge to next; parent is the chain that led to it
// and decides whether next closes an in-place loop. A node whose scan is
// still running elsewhere is scanned again under this chain, so a loop is
// found whichever of its nodes the walk reached first.
func (g *graph) enter(ctx context.Context, next target, chain, parent RefContext) error {
	if parent.Contains(next.key()) {
		return &domain.CycleError{Chain: parent.Cycle(next.key())}
	}
	if g.done[next.key()] {
		return nil
	}
	return g.scan(ctx, next, chain)
}

// descend scans any mapping or list below an instance-descending keyword as
// a fresh chain. Recursion through such keywords is legal, so a node already
// being scanned is skipped.
func (g *graph) descend(ctx context.Context, t target) error {
	switch val := t.node.(type) {
	case map[string]any:
		if g.visited[t.key()] {
			return nil
		}
		return g.scan(ctx, t, NewRefContext(t.key()))
	case []any:
		for i, item := range val {
			if err := g.descend(ctx, t.child(fmt.Sprint(i), item)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *graph) eachNamed(ctx context.Context, t target, fn func(target) error) error {
	m, ok := t.node.(map[string]any)
	if !ok {
		return nil
	}
	for _, name := range t.doc.Keys(t.pointer, m) {
		if err := fn(t.child(name, m[name])); err != nil {
			return err
		}
	}
	return nil
}

func (t target) child(key string, node any) target {
	return target{doc: t.doc, pointer: t.pointer + "/" + jsonpointer.Escape(key), node: node}
}
