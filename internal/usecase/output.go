package usecase

import (
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/parser"
	"gopkg.in/yaml.v3"
)

// caseSource tells the renderer where a case's payload came from so that
// mapping keys keep their authored order.
type caseSource struct {
	doc     *domain.Document
	pointer string
}

// caseNode renders an evaluated case. Field order is fixed: description,
// payload, parse_payload, from_examples, result, message or
// validation_message, payload_parsed, warnings.
func (uc *VerifyUseCase) caseNode(tc domain.TestCase, out domain.Outcome, src caseSource) *yaml.Node {
	node := parser.NewMapping()
	if tc.Description != "" {
		parser.SetMapValue(node, "description", parser.StringNode(tc.Description))
	}
	if tc.HasPayload {
		parser.SetMapValue(node, "payload", parser.ValueToNode(tc.Payload, src.doc, src.pointer))
	}
	if _, isString := tc.Payload.(string); tc.HasPayload && tc.ParsePayload && isString {
		parser.SetMapValue(node, "parse_payload", parser.BoolNode(true))
	}
	if tc.FromExamples {
		parser.SetMapValue(node, "from_examples", parser.BoolNode(true))
	}
	parser.SetMapValue(node, "result", parser.StringNode(string(out.Status)))
	switch {
	case out.Message != "":
		parser.SetMapValue(node, "message", parser.StringNode(out.Message))
	case out.ValidationMessage != "":
		parser.SetMapValue(node, "validation_message", parser.StringNode(out.ValidationMessage))
	}
	if out.HasParsed {
		parser.SetMapValue(node, "payload_parsed", uc.parsedNode(tc, out.Parsed))
	}
	if len(out.Warnings) > 0 {
		parser.SetMapValue(node, "warnings", warningsNode(out.Warnings))
	}
	return node
}

// parsedNode renders a parsed payload in the key order of its source text.
func (uc *VerifyUseCase) parsedNode(tc domain.TestCase, parsed any) *yaml.Node {
	text := tc.Name
	if s, ok := tc.Payload.(string); ok && tc.HasPayload {
		text = s
	}
	doc, err := uc.parser.Decode("payload", []byte(text))
	if err != nil {
		doc = nil
	}
	return parser.ValueToNode(parsed, doc, "")
}

func warningsNode(warnings []domain.Warning) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, w := range warnings {
		if !w.IsGenerated() {
			seq.Content = append(seq.Content, parser.StringNode(w.Text))
			continue
		}
		entry := parser.NewMapping()
		parser.SetMapValue(entry, "generated", parser.StringNode(w.Generated))
		if w.Code != "" {
			parser.SetMapValue(entry, "code", parser.StringNode(w.Code))
		}
		seq.Content = append(seq.Content, entry)
	}
	return seq
}

func documentNode(root *yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}
