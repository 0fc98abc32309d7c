package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-openapi/jsonpointer"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/parser"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
	"gopkg.in/yaml.v3"
)

//go:embed spec_schema.yaml
var specSchema []byte

// SpecSchema returns the schema every test-spec must satisfy.
func SpecSchema() []byte {
	return specSchema
}

// VerifyConfig holds configuration for verify execution
type VerifyConfig struct {
	Level   domain.OutputLevel
	InPlace bool
	// DeferWrite renders an in-place result without writing it; Write
	// persists it later.
	DeferWrite bool
}

// VerifyResult is the rendered test-spec and the tally of all evaluated cases.
type VerifyResult struct {
	// Location is the canonical path of the test-spec.
	Location string
	Output   []byte
	Counts   domain.Counts
}

// VerifyUseCase evaluates every case of a test-spec and renders the result.
type VerifyUseCase struct {
	documents domain.DocumentLoader
	structure domain.StructureValidator
	resolver  domain.RefResolver
	evaluator *CaseEvaluator
	writer    domain.FileWriter
	parser    *parser.Parser
	logger    *slog.Logger
}

// NewVerifyUseCase creates a new VerifyUseCase
func NewVerifyUseCase(
	documents domain.DocumentLoader,
	structure domain.StructureValidator,
	resolver domain.RefResolver,
	evaluator *CaseEvaluator,
	writer domain.FileWriter,
	logger *slog.Logger,
) *VerifyUseCase {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &VerifyUseCase{
		documents: documents,
		structure: structure,
		resolver:  resolver,
		evaluator: evaluator,
		writer:    writer,
		parser:    parser.NewParser(),
		logger:    logger,
	}
}

// Execute verifies the test-spec at specPath. Any returned error is fatal;
// in that case nothing has been written.
func (uc *VerifyUseCase) Execute(ctx context.Context, specPath string, config VerifyConfig) (VerifyResult, error) {
	if ctx.Err() != nil {
		return VerifyResult{}, ctx.Err()
	}
	if config.Level == "" {
		config.Level = domain.LevelWarning
	}

	doc, err := uc.documents.Load(ctx, specPath)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to load test-spec: %w", err)
	}
	if err := uc.structure.Validate(specPath, doc.Root); err != nil {
		return VerifyResult{}, err
	}

	root, _ := doc.Root.(map[string]any)
	version, _ := root["version"].(string)
	if err := domain.CheckVersion(version, domain.SupportedSpecMajor, domain.SupportedSpecMaxMinor); err != nil {
		return VerifyResult{}, fmt.Errorf("%s: %w", specPath, err)
	}
	if config.InPlace && refpath.IsURL(doc.Location) {
		return VerifyResult{}, fmt.Errorf("cannot update remote test-spec %s in place", doc.Location)
	}

	var counts domain.Counts
	tests, err := uc.evaluateTests(ctx, doc, config, &counts)
	if err != nil {
		return VerifyResult{}, err
	}

	out := parser.NewMapping()
	if config.InPlace {
		for _, k := range doc.Keys("", root) {
			if k == "tests" {
				parser.SetMapValue(out, k, tests)
				continue
			}
			parser.SetMapValue(out, k, parser.ValueToNode(root[k], doc, "/"+jsonpointer.Escape(k)))
		}
	} else {
		parser.SetMapValue(out, "version", parser.StringNode(domain.RecommendedSpecVersion))
		parser.SetMapValue(out, "tests", tests)
	}

	uc.parser.SetOutputFormat(domain.DetectFormat(doc.Location))
	data, err := uc.parser.MarshalNode(documentNode(out))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	res := VerifyResult{Location: doc.Location, Output: data, Counts: counts}
	if config.InPlace && !config.DeferWrite {
		if err := uc.Write(res); err != nil {
			return VerifyResult{}, err
		}
	}
	uc.logger.Info("verified test-spec", "path", specPath,
		"success", counts.Success, "warning", counts.Warning, "error", counts.Error)
	return res, nil
}

// Write replaces the test-spec at res.Location with the rendered result.
func (uc *VerifyUseCase) Write(res VerifyResult) error {
	if err := uc.writer.Write(res.Location, res.Output); err != nil {
		return fmt.Errorf("failed to update test-spec: %w", err)
	}
	return nil
}

func (uc *VerifyUseCase) evaluateTests(ctx context.Context, doc *domain.Document, config VerifyConfig, counts *domain.Counts) (*yaml.Node, error) {
	root, _ := doc.Root.(map[string]any)
	tests, _ := root["tests"].(map[string]any)
	specDir := refpath.Dir(doc.Location)

	out := parser.NewMapping()
	for _, key := range doc.Keys("/tests", tests) {
		ref, err := refpath.ParseConcrete(specDir, key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Location, err)
		}
		nodes, err := uc.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q in %s: %w", key, doc.Location, err)
		}
		if len(nodes) != 1 {
			return nil, fmt.Errorf("reference %q in %s selects %d nodes, want exactly one", key, doc.Location, len(nodes))
		}
		uc.logger.Debug("resolved reference", "ref", key, "file", nodes[0].Document.Location, "pointer", nodes[0].Pointer)

		groupPtr := "/tests/" + jsonpointer.Escape(key)
		group, _ := tests[key].(map[string]any)
		v := newGroup(group, config.InPlace)
		if err := uc.evaluateExamples(ctx, &nodes[0], ref, key, config, counts, v); err != nil {
			return nil, err
		}

		for _, bucket := range []domain.Bucket{domain.BucketValid, domain.BucketInvalid} {
			casesPtr := groupPtr + "/" + string(bucket)
			cases, _ := group[string(bucket)].(map[string]any)
			for _, name := range doc.Keys(casesPtr, cases) {
				tc := testCase(name, bucket, cases[name])
				if tc.FromExamples {
					continue
				}
				outcome, err := uc.evaluator.Evaluate(ctx, &nodes[0], key, tc)
				if err != nil {
					return nil, fmt.Errorf("failed to evaluate case %q of %q: %w", name, key, err)
				}
				counts.Add(outcome.Status)
				if config.InPlace || config.Level.Visible(outcome.Status) {
					src := caseSource{doc: doc, pointer: casesPtr + "/" + jsonpointer.Escape(name) + "/payload"}
					v.add(bucket, name, uc.caseNode(tc, outcome, src))
				}
			}
		}

		if node := v.node(); node != nil {
			parser.SetMapValue(out, key, node)
		}
	}
	return out, nil
}

// evaluateExamples turns the schema's examples into valid cases.
func (uc *VerifyUseCase) evaluateExamples(ctx context.Context, node *domain.ResolvedNode, ref domain.SchemaRef, key string, config VerifyConfig, counts *domain.Counts, v *groupBuilder) error {
	schema, _ := node.Schema.(map[string]any)
	examples, _ := schema["examples"].([]any)
	pointer, _ := refpath.Pointer(ref)
	for i, example := range examples {
		tc := domain.TestCase{
			Name:         refpath.ExamplesKey(pointer, i),
			Payload:      example,
			HasPayload:   true,
			FromExamples: true,
			Bucket:       domain.BucketValid,
		}
		outcome, err := uc.evaluator.Evaluate(ctx, node, key, tc)
		if err != nil {
			return fmt.Errorf("failed to evaluate example %q of %q: %w", tc.Name, key, err)
		}
		counts.Add(outcome.Status)
		if config.InPlace || config.Level.Visible(outcome.Status) {
			src := caseSource{doc: node.Document, pointer: fmt.Sprintf("%s/examples/%d", node.Pointer, i)}
			v.add(domain.BucketValid, tc.Name, uc.caseNode(tc, outcome, src))
		}
	}
	return nil
}

// testCase reads one case entry of a test-spec. Generated warnings are
// dropped; they are produced again by evaluation.
func testCase(name string, bucket domain.Bucket, raw any) domain.TestCase {
	tc := domain.TestCase{Name: name, Bucket: bucket}
	entry, ok := raw.(map[string]any)
	if !ok {
		return tc
	}
	tc.Description, _ = entry["description"].(string)
	if payload, ok := entry["payload"]; ok && payload != nil {
		tc.Payload, tc.HasPayload = payload, true
	}
	tc.ParsePayload, _ = entry["parse_payload"].(bool)
	tc.FromExamples, _ = entry["from_examples"].(bool)
	warnings, _ := entry["warnings"].([]any)
	for _, w := range warnings {
		if s, ok := w.(string); ok {
			tc.UserWarnings = append(tc.UserWarnings, s)
		}
	}
	return tc
}

// groupBuilder collects the rendered cases of one reference.
type groupBuilder struct {
	valid, invalid *yaml.Node
	// keep lists the buckets that are written even when empty.
	keep map[domain.Bucket]bool
}

func newGroup(group map[string]any, inPlace bool) *groupBuilder {
	g := &groupBuilder{keep: map[domain.Bucket]bool{}}
	if inPlace {
		for _, b := range []domain.Bucket{domain.BucketValid, domain.BucketInvalid} {
			if _, ok := group[string(b)]; ok {
				g.keep[b] = true
			}
		}
		if len(g.keep) == 0 {
			g.keep[domain.BucketValid] = true
			g.keep[domain.BucketInvalid] = true
		}
	}
	return g
}

func (g *groupBuilder) add(bucket domain.Bucket, name string, c *yaml.Node) {
	target := &g.valid
	if bucket == domain.BucketInvalid {
		target = &g.invalid
	}
	if *target == nil {
		*target = parser.NewMapping()
	}
	parser.SetMapValue(*target, name, c)
}

// node renders the group, or nil when nothing is to be written.
func (g *groupBuilder) node() *yaml.Node {
	if g.valid == nil && g.invalid == nil && len(g.keep) == 0 {
		return nil
	}
	out := parser.NewMapping()
	for _, b := range []domain.Bucket{domain.BucketValid, domain.BucketInvalid} {
		cases := g.valid
		if b == domain.BucketInvalid {
			cases = g.invalid
		}
		switch {
		case cases != nil:
			parser.SetMapValue(out, string(b), cases)
		case g.keep[b]:
			parser.SetMapValue(out, string(b), nullNode())
		}
	}
	return out
}
