package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/yaccob/teds/internal/domain"
	"gopkg.in/yaml.v3"
)

const mergeTag = "!!merge"

// checkDuplicateKeys walks the tree and rejects mappings that define a key twice.
// yaml.v3 only enforces unique keys when decoding into Go values, not into a Node.
func checkDuplicateKeys(node *yaml.Node) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		seen := make(map[string]int, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind == yaml.ScalarNode && key.ShortTag() != mergeTag {
				if line, ok := seen[key.Value]; ok {
					return fmt.Errorf("line %d: mapping key %q already defined at line %d", key.Line, key.Value, line)
				}
				seen[key.Value] = key.Line
			}
			if err := checkDuplicateKeys(node.Content[i+1]); err != nil {
				return err
			}
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			if err := checkDuplicateKeys(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// toValue converts node to map[string]any, []any or a scalar. When order is
// non-nil the key order of every mapping is recorded under its JSON pointer.
func toValue(node *yaml.Node, pointer string, order map[string][]string) (any, error) {
	c := converter{order: order, expanding: make(map[*yaml.Node]bool)}
	return c.convert(node, pointer)
}

type converter struct {
	order     map[string][]string
	expanding map[*yaml.Node]bool
}

func (c *converter) convert(node *yaml.Node, pointer string) (any, error) {
	// an empty input decodes to a zero-kind node
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return c.convert(node.Content[0], pointer)

	case yaml.AliasNode:
		target := node.Alias
		if c.expanding[target] {
			return nil, fmt.Errorf("line %d: anchor %q value contains itself", node.Line, node.Value)
		}
		c.expanding[target] = true
		defer delete(c.expanding, target)
		return c.convert(target, pointer)

	case yaml.MappingNode:
		return c.convertMapping(node, pointer)

	case yaml.SequenceNode:
		result := make([]any, 0, len(node.Content))
		for i, item := range node.Content {
			v, err := c.convert(item, fmt.Sprintf("%s/%d", pointer, i))
			if err != nil {
				return nil, err
			}
			result = append(result, v)
		}
		return result, nil

	case yaml.ScalarNode:
		return scalarValue(node)
	}
	return node.Value, nil
}

func (c *converter) convertMapping(node *yaml.Node, pointer string) (any, error) {
	result := make(map[string]any, len(node.Content)/2)
	keys := make([]string, 0, len(node.Content)/2)
	var merges []*yaml.Node

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind == yaml.ScalarNode && keyNode.ShortTag() == mergeTag {
			merges = append(merges, valueNode)
			continue
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
		}
		key := keyNode.Value
		v, err := c.convert(valueNode, pointer+"/"+jsonpointer.Escape(key))
		if err != nil {
			return nil, err
		}
		result[key] = v
		keys = append(keys, key)
	}

	for _, m := range merges {
		sources := []*yaml.Node{m}
		if m.Kind == yaml.SequenceNode {
			sources = m.Content
		}
		for _, src := range sources {
			v, err := c.convert(src, pointer)
			if err != nil {
				return nil, err
			}
			merged, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("line %d: map merge requires a mapping", src.Line)
			}
			mergedKeys := c.keysAt(pointer, merged)
			for _, k := range mergedKeys {
				if _, exists := result[k]; exists {
					continue
				}
				result[k] = merged[k]
				keys = append(keys, k)
			}
		}
	}

	if c.order != nil {
		c.order[pointer] = keys
	}
	return result, nil
}

// keysAt returns the keys of a merged mapping; converting the merge source
// recorded its order under the same pointer.
func (c *converter) keysAt(pointer string, m map[string]any) []string {
	if c.order != nil {
		if keys, ok := c.order[pointer]; ok && len(keys) == len(m) {
			return append([]string(nil), keys...)
		}
	}
	doc := &domain.Document{}
	return doc.Keys(pointer, m)
}

// scalarValue decodes a scalar. Timestamps stay strings so that the result
// is always JSON compatible.
func scalarValue(node *yaml.Node) (any, error) {
	if node.ShortTag() == "!!timestamp" {
		return node.Value, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValueToNode converts plain values into a yaml.Node. Mapping keys follow
// doc's recorded order below pointer; doc may be nil, in which case keys are
// sorted.
func ValueToNode(v any, doc *domain.Document, pointer string) *yaml.Node {
	switch val := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case map[string]any:
		node := NewMapping()
		for _, k := range doc.Keys(pointer, val) {
			node.Content = append(node.Content, StringNode(k), ValueToNode(val[k], doc, pointer+"/"+jsonpointer.Escape(k)))
		}
		return node
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, item := range val {
			node.Content = append(node.Content, ValueToNode(item, doc, fmt.Sprintf("%s/%d", pointer, i)))
		}
		return node
	case string:
		return StringNode(val)
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(val.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: val.String()}
	default:
		node := &yaml.Node{}
		if err := node.Encode(val); err != nil {
			return StringNode(fmt.Sprint(val))
		}
		return node
	}
}
