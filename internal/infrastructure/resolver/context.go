package resolver

import "github.com/yaccob/teds/internal/infrastructure/refpath"

// nodeKey identifies a schema node across documents.
type nodeKey struct {
	file    string
	pointer string
}

func (k nodeKey) String() string {
	return refpath.FormatPointer(k.file, k.pointer)
}

type link struct {
	key nodeKey
	// named links are reference targets or the start of a chain and are
	// shown in cycle messages.
	named bool
}

// RefContext is the in-place evaluation chain leading to the node being
// scanned. It is a value: every With* method returns an extended copy.
type RefContext struct {
	chain []link
}

// NewRefContext starts a chain at key.
func NewRefContext(key nodeKey) RefContext {
	return RefContext{chain: []link{{key: key, named: true}}}
}

// WithInPlace extends the chain with an in-place subschema.
func (c RefContext) WithInPlace(key nodeKey) RefContext {
	return c.with(link{key: key})
}

// WithRef extends the chain with a $ref target.
func (c RefContext) WithRef(key nodeKey) RefContext {
	return c.with(link{key: key, named: true})
}

func (c RefContext) with(l link) RefContext {
	chain := make([]link, len(c.chain), len(c.chain)+1)
	copy(chain, c.chain)
	return RefContext{chain: append(chain, l)}
}

// Contains reports whether key is already part of the chain.
func (c RefContext) Contains(key nodeKey) bool {
	return c.index(key) >= 0
}

func (c RefContext) index(key nodeKey) int {
	for i, l := range c.chain {
		if l.key == key {
			return i
		}
	}
	return -1
}

// Cycle renders the loop closed by key, e.g. "a.yaml#/x -> b.yaml#/y -> a.yaml#/x".
func (c RefContext) Cycle(key nodeKey) []string {
	start := c.index(key)
	if start < 0 {
		return []string{key.String()}
	}
	var out []string
	for i, l := range c.chain[start:] {
		if i == 0 || l.named {
			out = append(out, l.key.String())
		}
	}
	return append(out, key.String())
}
