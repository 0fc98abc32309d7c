package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/parser"
)

const structureURL = "teds:///spec_schema.json"

// StructureValidator checks whole documents against a fixed schema, such as
// the layout of a test-spec.
type StructureValidator struct {
	schema *jsonschema.Schema
}

// NewStructureValidator compiles schemaText, given as YAML or JSON.
func NewStructureValidator(schemaText []byte) (*StructureValidator, error) {
	value, err := parser.NewParser().ParseValue(string(schemaText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse structure schema: %w", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(structureURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add structure schema: %w", err)
	}
	sch, err := c.Compile(structureURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile structure schema: %w", err)
	}
	return &StructureValidator{schema: sch}, nil
}

// Validate reports the first structural violation of root as a
// *domain.SpecStructureError naming path.
func (s *StructureValidator) Validate(path string, root any) error {
	instance, err := normalize(root)
	if err != nil {
		return &domain.SpecStructureError{Path: path, At: "/", Message: err.Error()}
	}
	err = s.schema.Validate(instance)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &domain.SpecStructureError{Path: path, At: "/", Message: err.Error()}
	}
	leaves := leafErrors(verr, nil)
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].InstanceLocation != leaves[j].InstanceLocation {
			return leaves[i].InstanceLocation < leaves[j].InstanceLocation
		}
		return leaves[i].KeywordLocation < leaves[j].KeywordLocation
	})
	at := leaves[0].InstanceLocation
	if at == "" {
		at = "/"
	}
	return &domain.SpecStructureError{Path: path, At: at, Message: leaves[0].Message}
}
