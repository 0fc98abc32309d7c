package refpath

import (
	"fmt"
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// Segment is one step of a canonical selector.
type Segment struct {
	Key      string
	Wildcard bool
}

// RootSelector addresses the document root.
const RootSelector = "$"

// Selector renders segments in canonical form: every step a single-quoted
// bracket key, wildcards as [*].
func Selector(segs []Segment) string {
	var b strings.Builder
	b.WriteString(RootSelector)
	for _, s := range segs {
		if s.Wildcard {
			b.WriteString("[*]")
			continue
		}
		b.WriteString("['")
		for _, r := range s.Key {
			switch r {
			case '\'', '\\':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteString("']")
	}
	return b.String()
}

// Segments decodes a canonical selector produced by Selector.
func Segments(selector string) ([]Segment, error) {
	if !strings.HasPrefix(selector, RootSelector) {
		return nil, fmt.Errorf("selector %q does not start with $", selector)
	}
	rest := selector[len(RootSelector):]
	var segs []Segment
	for len(rest) > 0 {
		if strings.HasPrefix(rest, "[*]") {
			segs = append(segs, Segment{Wildcard: true})
			rest = rest[3:]
			continue
		}
		if !strings.HasPrefix(rest, "['") {
			return nil, fmt.Errorf("selector %q: unexpected %q", selector, rest)
		}
		var key strings.Builder
		i := 2
		closed := false
		for i < len(rest) {
			c := rest[i]
			if c == '\\' && i+1 < len(rest) {
				key.WriteByte(rest[i+1])
				i += 2
				continue
			}
			if c == '\'' {
				closed = true
				break
			}
			key.WriteByte(c)
			i++
		}
		if !closed || i+1 >= len(rest) || rest[i+1] != ']' {
			return nil, fmt.Errorf("selector %q: unterminated key", selector)
		}
		segs = append(segs, Segment{Key: key.String()})
		rest = rest[i+2:]
	}
	return segs, nil
}

// FromPointer converts a JSON pointer ("" or "/a/b") into a canonical selector.
func FromPointer(pointer string) string {
	return Selector(pointerSegments(pointer))
}

func pointerSegments(pointer string) []Segment {
	if pointer == "" {
		return nil
	}
	tokens := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	segs := make([]Segment, 0, len(tokens))
	for _, t := range tokens {
		segs = append(segs, Segment{Key: jsonpointer.Unescape(t)})
	}
	return segs
}

// ToPointer renders concrete segments as a JSON pointer. Wildcards render as "*".
func ToPointer(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if s.Wildcard {
			b.WriteByte('*')
			continue
		}
		b.WriteString(jsonpointer.Escape(s.Key))
	}
	return b.String()
}

// Child appends a concrete key to a canonical selector.
func Child(selector, key string) string {
	segs, err := Segments(selector)
	if err != nil {
		return selector
	}
	return Selector(append(segs, Segment{Key: key}))
}

