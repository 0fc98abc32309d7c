package parser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yaccob/teds/internal/domain"
	"gopkg.in/yaml.v3"
)

// Parser parses YAML/JSON documents strictly and renders output trees.
type Parser struct {
	outputFormat domain.FileFormat
}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// SetOutputFormat sets the output format (YAML or JSON)
func (p *Parser) SetOutputFormat(format domain.FileFormat) {
	p.outputFormat = format
}

// ParseFile parses YAML/JSON data into a yaml.Node preserving order.
// Duplicate mapping keys anywhere in the tree are rejected.
func (p *Parser) ParseFile(data []byte) (*yaml.Node, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if err := checkDuplicateKeys(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

// Decode parses data read from location into a Document.
func (p *Parser) Decode(location string, data []byte) (*domain.Document, error) {
	node, err := p.ParseFile(data)
	if err != nil {
		return nil, &domain.ParseError{Location: location, Err: err}
	}
	order := make(map[string][]string)
	root, err := toValue(node, "", order)
	if err != nil {
		return nil, &domain.ParseError{Location: location, Err: err}
	}
	return &domain.Document{Location: location, Root: root, Order: order}, nil
}

// ParseValue parses a YAML/JSON text into plain values.
// Empty input yields nil.
func (p *Parser) ParseValue(text string) (any, error) {
	node, err := p.ParseFile([]byte(text))
	if err != nil {
		return nil, err
	}
	return toValue(node, "", nil)
}

// MarshalNode marshals a yaml.Node to YAML or JSON bytes
func (p *Parser) MarshalNode(node *yaml.Node) ([]byte, error) {
	if p.outputFormat == domain.FormatJSON {
		return p.marshalJSON(node)
	}
	return p.marshalYAML(node)
}

// marshalYAML marshals to YAML format
func (p *Parser) marshalYAML(node *yaml.Node) ([]byte, error) {
	p.formatNode(node)

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(node); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	return []byte(buf.String()), nil
}

// marshalJSON renders node as indented JSON, keeping mapping key order.
func (p *Parser) marshalJSON(node *yaml.Node) ([]byte, error) {
	raw, err := jsonValue(node)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// jsonValue encodes node compactly. Mappings are written pair by pair since
// encoding/json would sort map keys.
func jsonValue(node *yaml.Node) (json.RawMessage, error) {
	if node == nil {
		return json.RawMessage("null"), nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return json.RawMessage("null"), nil
		}
		return jsonValue(node.Content[0])

	case yaml.AliasNode:
		return jsonValue(node.Alias)

	case yaml.MappingNode:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := plainJSON(node.Content[i].Value)
			if err != nil {
				return nil, err
			}
			value, err := jsonValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case yaml.SequenceNode:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			value, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			buf.Write(value)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}

	v, err := scalarValue(node)
	if err != nil {
		return plainJSON(node.Value)
	}
	return plainJSON(v)
}

// plainJSON is json.Marshal without HTML escaping.
func plainJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// formatNode applies output formatting rules: aliases are inlined and
// multi-line strings use literal block style.
func (p *Parser) formatNode(node *yaml.Node) {
	if node == nil {
		return
	}

	switch node.Kind {
	case yaml.DocumentNode, yaml.MappingNode, yaml.SequenceNode:
		node.Anchor = ""
		for i, child := range node.Content {
			if child.Kind == yaml.AliasNode && child.Alias != nil {
				node.Content[i] = CloneNode(child.Alias)
				child = node.Content[i]
			}
			p.formatNode(child)
		}

	case yaml.ScalarNode:
		node.Anchor = ""
		p.formatScalarNode(node)
	}
}

// formatScalarNode formats a standalone scalar node
func (p *Parser) formatScalarNode(node *yaml.Node) {
	// Convert folded (>) to literal (|)
	if node.Style == yaml.FoldedStyle {
		node.Style = yaml.LiteralStyle
		return
	}
	if strings.Contains(node.Value, "\n") && isStringScalar(node) {
		node.Style = yaml.LiteralStyle
	}
}

func isStringScalar(node *yaml.Node) bool {
	return node.Tag == "" || node.ShortTag() == "!!str"
}
