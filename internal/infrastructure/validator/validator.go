// Package validator validates payloads against resolved schema nodes with
// two compiler configurations: strict (format asserted) and lenient
// (format ignored).
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/cache"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
)

type schemaKey struct {
	location string
	pointer  string
	strict   bool
}

// outcomeKey identifies a payload by its canonical JSON digest, so payloads
// that are equal as JSON share one outcome.
type outcomeKey struct {
	schemaKey
	payload string
}

// Validator implements domain.Validator on top of the schema cache.
type Validator struct {
	cache    *cache.Cache
	strict   *jsonschema.Compiler
	lenient  *jsonschema.Compiler
	compiled map[schemaKey]*jsonschema.Schema
	outcomes map[outcomeKey]*domain.Rejection
	reused   int

	// ctx is the context of the Validate call in progress; the compilers'
	// loaders have no context parameter of their own.
	ctx context.Context
}

// NewValidator creates a Validator reading schema documents through c.
func NewValidator(c *cache.Cache) *Validator {
	v := &Validator{
		cache:    c,
		compiled: make(map[schemaKey]*jsonschema.Schema),
		outcomes: make(map[outcomeKey]*domain.Rejection),
		ctx:      context.Background(),
	}
	v.strict = v.newCompiler(true)
	v.lenient = v.newCompiler(false)
	return v
}

func (v *Validator) newCompiler(strict bool) *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = strict
	c.LoadURL = func(s string) (io.ReadCloser, error) {
		location, err := locationOf(s)
		if err != nil {
			return nil, err
		}
		data, err := v.cache.JSON(v.ctx, location, !strict)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return c
}

// Validate implements domain.Validator.
func (v *Validator) Validate(ctx context.Context, node *domain.ResolvedNode, payload any, enforceFormat bool) (*domain.Rejection, error) {
	v.ctx = ctx
	defer func() { v.ctx = context.Background() }()

	sch, err := v.schema(node, enforceFormat)
	if err != nil {
		return nil, err
	}

	instance, err := normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not representable as JSON: %w", err)
	}

	key := outcomeKey{schemaKey: schemaKey{location: node.Document.Location, pointer: node.Pointer, strict: enforceFormat}}
	digest, err := cache.Digest(instance)
	if err == nil {
		key.payload = digest
		if rej, ok := v.outcomes[key]; ok {
			v.reused++
			return clone(rej), nil
		}
	}

	rej, err := v.validate(sch, node, instance)
	if err != nil {
		return nil, err
	}
	if key.payload != "" {
		v.outcomes[key] = rej
	}
	return clone(rej), nil
}

func clone(rej *domain.Rejection) *domain.Rejection {
	if rej == nil {
		return nil
	}
	out := *rej
	out.Formats = append([]string(nil), rej.Formats...)
	return &out
}

func (v *Validator) validate(sch *jsonschema.Schema, node *domain.ResolvedNode, instance any) (*domain.Rejection, error) {
	err := sch.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validate against %s: %w", refpath.FormatPointer(node.Document.Location, node.Pointer), err)
	}
	return v.rejection(verr), nil
}

func (v *Validator) schema(node *domain.ResolvedNode, strict bool) (*jsonschema.Schema, error) {
	key := schemaKey{location: node.Document.Location, pointer: node.Pointer, strict: strict}
	if sch, ok := v.compiled[key]; ok {
		return sch, nil
	}
	compiler := v.lenient
	if strict {
		compiler = v.strict
	}
	sch, err := compiler.Compile(schemaURL(node.Document.Location, node.Pointer))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", refpath.FormatPointer(node.Document.Location, node.Pointer), err)
	}
	v.compiled[key] = sch
	return sch, nil
}

// schemaURL addresses pointer inside the document at location.
func schemaURL(location, pointer string) string {
	base := location
	if !refpath.IsURL(location) {
		base = (&url.URL{Scheme: "file", Path: filepath.ToSlash(location)}).String()
	}
	if pointer == "" {
		return base
	}
	tokens := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, t := range tokens {
		tokens[i] = url.PathEscape(t)
	}
	return base + "#/" + strings.Join(tokens, "/")
}

// locationOf maps a compiler URL back to a cache location.
func locationOf(s string) (string, error) {
	s, _, _ = strings.Cut(s, "#")
	if refpath.IsURL(s) {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported schema URL %q", s)
	}
	return filepath.FromSlash(u.Path), nil
}

// normalize converts payload into the value model the compiler expects.
func normalize(payload any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// rejection picks a deterministic message: the first leaf error ordered by
// instance location, keyword location and message.
func (v *Validator) rejection(verr *jsonschema.ValidationError) *domain.Rejection {
	leaves := leafErrors(verr, nil)
	sort.SliceStable(leaves, func(i, j int) bool {
		a, b := leaves[i], leaves[j]
		if a.InstanceLocation != b.InstanceLocation {
			return a.InstanceLocation < b.InstanceLocation
		}
		if a.KeywordLocation != b.KeywordLocation {
			return a.KeywordLocation < b.KeywordLocation
		}
		return a.Message < b.Message
	})

	first := leaves[0]
	msg := first.Message
	if first.InstanceLocation != "" {
		msg = fmt.Sprintf("at '%s': %s", first.InstanceLocation, first.Message)
	}

	seen := map[string]bool{}
	var formats []string
	for _, leaf := range leaves {
		if !strings.HasSuffix(leaf.KeywordLocation, "/format") {
			continue
		}
		name := v.formatName(leaf)
		if !seen[name] {
			seen[name] = true
			formats = append(formats, name)
		}
	}
	sort.Strings(formats)
	return &domain.Rejection{Message: msg, Formats: formats}
}

func leafErrors(e *jsonschema.ValidationError, acc []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return append(acc, e)
	}
	for _, c := range e.Causes {
		acc = leafErrors(c, acc)
	}
	return acc
}

var formatMessage = regexp.MustCompile(`is not valid '([^']+)'$`)

// formatName reads the asserted format from the schema document; the
// message text is the fallback.
func (v *Validator) formatName(leaf *jsonschema.ValidationError) string {
	if s, fragment, ok := strings.Cut(leaf.AbsoluteKeywordLocation, "#"); ok {
		if location, err := locationOf(s); err == nil {
			if doc, ok := v.cache.Document(location); ok {
				if pointer, err := url.PathUnescape(fragment); err == nil {
					if name, ok := lookupString(doc.Root, pointer); ok {
						return name
					}
				}
			}
		}
	}
	if m := formatMessage.FindStringSubmatch(leaf.Message); m != nil {
		return m[1]
	}
	return "unknown"
}

func lookupString(root any, pointer string) (string, bool) {
	node, ok := cache.Walk(root, pointer)
	if !ok {
		return "", false
	}
	s, ok := node.(string)
	return s, ok
}
