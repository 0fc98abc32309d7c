// Package refpath turns user supplied schema references (JSON Pointer or
// JSONPath form) into canonical domain.SchemaRef values.
package refpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/yaccob/teds/internal/domain"
)

// Normalize parses ref with container semantics and resolves its file part
// against base (a directory or a document URL).
//
//	file#/a/b     children of /a/b (Expand)
//	file#/a/b/*   same as above
//	file, file#, file#/
//	              children of the document root (Expand)
//	file#$.a.b    the node $.a.b, wildcards only where written
//	file#$        the document root itself
func Normalize(base, ref string) (domain.SchemaRef, error) {
	return parse(base, ref, modeContainer)
}

// ParseConcrete parses a test-spec reference key. The result always addresses
// exactly one node: pointer forms are taken literally and wildcards are
// rejected. A bare file, file# or file#/ address the document root.
func ParseConcrete(base, ref string) (domain.SchemaRef, error) {
	return parse(base, ref, modeConcrete)
}

// Literal parses a reference whose pointer is taken literally; an explicit
// trailing /* selects the children of the addressed node.
func Literal(base, ref string) (domain.SchemaRef, error) {
	return parse(base, ref, modeLiteral)
}

// Path builds a reference from a JSONPath expression addressed against file.
func Path(base, file, path string) (domain.SchemaRef, error) {
	if strings.TrimSpace(file) == "" {
		return domain.SchemaRef{}, malformed(path, "missing schema file path", nil)
	}
	segs, err := parseJSONPath(path)
	if err != nil {
		return domain.SchemaRef{}, malformed(path, "", err)
	}
	return build(Abs(base, file), segs, false), nil
}

type mode int

const (
	modeContainer mode = iota
	modeConcrete
	modeLiteral
)

func parse(base, ref string, m mode) (domain.SchemaRef, error) {
	file, fragment, hasFragment := strings.Cut(ref, "#")
	if strings.TrimSpace(file) == "" {
		return domain.SchemaRef{}, malformed(ref, "missing schema file path", nil)
	}
	location := Abs(base, file)

	switch {
	case strings.HasPrefix(fragment, "$"):
		segs, err := parseJSONPath(fragment)
		if err != nil {
			return domain.SchemaRef{}, malformed(ref, "", err)
		}
		if m == modeConcrete && hasWildcard(segs) {
			return domain.SchemaRef{}, malformed(ref, "wildcards are not allowed here", nil)
		}
		return build(location, segs, false), nil

	case !hasFragment || fragment == "" || fragment == "/":
		if m == modeContainer {
			return domain.SchemaRef{File: location, Selector: RootSelector, Expand: true}, nil
		}
		return domain.SchemaRef{File: location, Selector: RootSelector}, nil

	case strings.HasPrefix(fragment, "/"):
		segs, err := parsePointer(fragment)
		if err != nil {
			return domain.SchemaRef{}, malformed(ref, "", err)
		}
		if m == modeConcrete {
			if hasWildcard(segs) {
				return domain.SchemaRef{}, malformed(ref, "wildcards are not allowed here", nil)
			}
			return build(location, segs, false), nil
		}
		if m == modeContainer && (len(segs) == 0 || !segs[len(segs)-1].Wildcard) {
			segs = append(segs, Segment{Wildcard: true})
		}
		return build(location, segs, false), nil
	}
	return domain.SchemaRef{}, malformed(ref, `fragment must be a JSON pointer ("#/...") or a JSONPath ("#$...")`, nil)
}

// build folds a trailing wildcard into Expand.
func build(location string, segs []Segment, expand bool) domain.SchemaRef {
	if n := len(segs); n > 0 && segs[n-1].Wildcard {
		segs = segs[:n-1]
		expand = true
	}
	return domain.SchemaRef{File: location, Selector: Selector(segs), Expand: expand}
}

func parsePointer(fragment string) ([]Segment, error) {
	tokens := strings.Split(strings.TrimPrefix(fragment, "/"), "/")
	segs := make([]Segment, 0, len(tokens))
	for i, t := range tokens {
		if t == ".." {
			return nil, fmt.Errorf("parent navigation %q is not supported", t)
		}
		if err := checkEscapes(t); err != nil {
			return nil, err
		}
		if t == "*" {
			segs = append(segs, Segment{Wildcard: true})
			continue
		}
		if t == "" && i == len(tokens)-1 {
			// trailing slash
			continue
		}
		segs = append(segs, Segment{Key: strings.ReplaceAll(strings.ReplaceAll(t, "~1", "/"), "~0", "~")})
	}
	return segs, nil
}

func checkEscapes(token string) error {
	for i := 0; i < len(token); i++ {
		if token[i] != '~' {
			continue
		}
		if i+1 >= len(token) || (token[i+1] != '0' && token[i+1] != '1') {
			return fmt.Errorf("invalid escape in pointer token %q", token)
		}
	}
	return nil
}

func parseJSONPath(path string) ([]Segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty JSONPath expression")
	}
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("JSONPath expression must start with '$'")
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, err
	}
	var segs []Segment
	for i, frag := range x {
		switch f := frag.(type) {
		case jp.Root:
			if i != 0 {
				return nil, fmt.Errorf("unexpected root in %s", path)
			}
		case jp.Bracket:
		case jp.Child:
			segs = append(segs, Segment{Key: string(f)})
		case jp.Nth:
			if f < 0 {
				return nil, fmt.Errorf("negative index %d is not supported", int(f))
			}
			segs = append(segs, Segment{Key: strconv.Itoa(int(f))})
		case jp.Wildcard:
			segs = append(segs, Segment{Wildcard: true})
		case jp.Descent:
			return nil, fmt.Errorf("recursive descent is not supported")
		default:
			return nil, fmt.Errorf("unsupported JSONPath selector %T", frag)
		}
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("empty JSONPath expression")
	}
	if _, ok := x[0].(jp.Root); !ok {
		return nil, fmt.Errorf("JSONPath expression must start with '$'")
	}
	return segs, nil
}

func hasWildcard(segs []Segment) bool {
	for _, s := range segs {
		if s.Wildcard {
			return true
		}
	}
	return false
}

func malformed(ref, reason string, err error) error {
	return &domain.MalformedReferenceError{Ref: ref, Reason: reason, Err: err}
}
