package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/mohae/deepcopy"
	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/parser"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
	"gopkg.in/yaml.v3"
)

const (
	rootTargetName    = "{base}.tests.yaml"
	pointerTargetName = "{base}.{pointer}.tests.yaml"
)

// generateSource is one reference feeding a target file.
type generateSource struct {
	ref domain.SchemaRef
	// optional sources may select nothing.
	optional bool
}

// generateJob is one target file and the references that feed it.
type generateJob struct {
	target  string
	sources []generateSource
}

// GenerateUseCase writes test-spec skeletons for schema nodes, merging into
// existing files.
type GenerateUseCase struct {
	documents domain.DocumentLoader
	resolver  domain.RefResolver
	writer    domain.FileWriter
	parser    *parser.Parser
	logger    *slog.Logger
}

// NewGenerateUseCase creates a new GenerateUseCase
func NewGenerateUseCase(
	documents domain.DocumentLoader,
	resolver domain.RefResolver,
	writer domain.FileWriter,
	logger *slog.Logger,
) *GenerateUseCase {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &GenerateUseCase{
		documents: documents,
		resolver:  resolver,
		writer:    writer,
		parser:    parser.NewParser(),
		logger:    logger,
	}
}

// Execute processes one mapping and returns the files it wrote. A mapping is
// REF[=TARGET], @config.yaml, or an inline YAML/JSON configuration. Relative
// paths resolve against baseDir.
func (uc *GenerateUseCase) Execute(ctx context.Context, mapping, baseDir string) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	jobs, err := uc.parseMapping(ctx, mapping, baseDir)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, job := range jobs {
		if err := uc.generate(ctx, job); err != nil {
			return written, err
		}
		written = append(written, job.target)
	}
	return written, nil
}

func (uc *GenerateUseCase) parseMapping(ctx context.Context, mapping, baseDir string) ([]generateJob, error) {
	trimmed := strings.TrimSpace(mapping)
	switch {
	case strings.HasPrefix(trimmed, "@"):
		path := refpath.Abs(baseDir, strings.TrimPrefix(trimmed, "@"))
		doc, err := uc.documents.Load(ctx, path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
		return uc.parseConfig(doc, refpath.Dir(doc.Location))

	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["), strings.Contains(trimmed, "\n"):
		doc, err := uc.parser.Decode("<inline>", []byte(trimmed))
		if err != nil {
			return nil, fmt.Errorf("invalid generate configuration: %w", err)
		}
		return uc.parseConfig(doc, baseDir)
	}

	job, err := parseRef(trimmed, baseDir)
	if err != nil {
		return nil, err
	}
	return []generateJob{job}, nil
}

// parseRef handles REF[=TARGET]. REF selects the children of its pointer.
func parseRef(mapping, baseDir string) (generateJob, error) {
	refText, target, _ := strings.Cut(mapping, "=")
	ref, err := refpath.Normalize(baseDir, refText)
	if err != nil {
		return generateJob{}, err
	}
	file, fragment, _ := strings.Cut(refText, "#")
	pointer := strings.TrimSuffix(strings.TrimSuffix(fragment, "*"), "/")
	if strings.HasPrefix(pointer, "$") {
		pointer = ""
	}

	name := rootTargetName
	if pointer != "" {
		name = pointerTargetName
	}
	path, err := targetPath(ref.File, file, pointer, target, name)
	if err != nil {
		return generateJob{}, err
	}
	return generateJob{target: path, sources: []generateSource{{ref: ref}}}, nil
}

// parseConfig reads {schema: [paths]}, {schema: {paths, target}} or
// {target: [file#pointer, ...]} objects, or a list of REF[=TARGET] strings.
func (uc *GenerateUseCase) parseConfig(doc *domain.Document, baseDir string) ([]generateJob, error) {
	switch cfg := doc.Root.(type) {
	case []any:
		var jobs []generateJob
		for _, item := range cfg {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("path must be string, got %T", item)
			}
			job, err := parseRef(s, baseDir)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
		return jobs, nil

	case map[string]any:
		var jobs []generateJob
		for _, key := range doc.Keys("", cfg) {
			job, err := configJob(key, cfg[key], baseDir)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
		return jobs, nil
	}
	return nil, errors.New("generate configuration must be a list or an object")
}

func configJob(key string, value any, baseDir string) (generateJob, error) {
	var (
		paths  []any
		target string
	)
	switch val := value.(type) {
	case []any:
		paths = val
	case map[string]any:
		raw, ok := val["paths"]
		if !ok {
			return generateJob{}, fmt.Errorf("configuration for %q: missing 'paths' field", key)
		}
		if paths, ok = raw.([]any); !ok {
			return generateJob{}, fmt.Errorf("configuration for %q: 'paths' must be a list", key)
		}
		if t, ok := val["target"]; ok && t != nil {
			if target, ok = t.(string); !ok {
				return generateJob{}, fmt.Errorf("configuration for %q: 'target' must be a string", key)
			}
		}
	default:
		return generateJob{}, fmt.Errorf("configuration for %q must be a list or an object", key)
	}

	entries := make([]string, 0, len(paths))
	targetKey := len(paths) > 0
	for _, p := range paths {
		s, ok := p.(string)
		if !ok {
			return generateJob{}, fmt.Errorf("configuration for %q: path must be string, got %T", key, p)
		}
		entries = append(entries, s)
		if !strings.Contains(s, "#") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "$") {
			targetKey = false
		}
	}

	var job generateJob
	for _, entry := range entries {
		var (
			ref domain.SchemaRef
			err error
		)
		switch {
		case strings.HasPrefix(entry, "$"):
			ref, err = refpath.Path(baseDir, key, entry)
		case strings.HasPrefix(entry, "#"):
			ref, err = refpath.Literal(baseDir, key+entry)
		case strings.Contains(entry, "#"):
			ref, err = refpath.Literal(baseDir, entry)
		default:
			err = &domain.MalformedReferenceError{Ref: entry, Reason: `expected a JSONPath ("$...") or a JSON pointer ("#/...")`}
		}
		if err != nil {
			return generateJob{}, fmt.Errorf("configuration for %q: %w", key, err)
		}
		job.sources = append(job.sources, generateSource{ref: ref, optional: strings.HasPrefix(entry, "$")})
	}

	if targetKey {
		job.target = refpath.Abs(baseDir, key)
		return job, nil
	}
	path, err := targetPath(refpath.Abs(baseDir, key), key, "", target, rootTargetName)
	if err != nil {
		return generateJob{}, err
	}
	job.target = path
	return job, nil
}

// targetPath expands template for the schema at location, given by the user
// as file. Relative results resolve against the schema's directory and
// directories receive the default name.
func targetPath(location, file, pointer, template, defaultName string) (string, error) {
	if template == "" {
		template = defaultName
	}
	expanded := expandTokens(template, location, file, pointer)
	base := refpath.Dir(location)
	if refpath.IsURL(base) && !filepath.IsAbs(expanded) {
		return "", fmt.Errorf("target for remote schema %s must be an absolute path", location)
	}
	path := filepath.Clean(expanded)
	if !filepath.IsAbs(path) {
		path = refpath.Abs(base, expanded)
	}
	if strings.HasSuffix(template, "/") || isDir(path) {
		path = filepath.Join(path, expandTokens(defaultName, location, file, pointer))
	}
	return path, nil
}

func expandTokens(template, location, file, pointer string) string {
	name := filepath.Base(location)
	if refpath.IsURL(location) {
		if u, err := url.Parse(location); err == nil {
			name = filepath.Base(u.Path)
		}
	}
	ext := filepath.Ext(name)
	raw := strings.TrimPrefix(pointer, "/")
	return strings.NewReplacer(
		"{file}", name,
		"{base}", strings.TrimSuffix(name, ext),
		"{ext}", strings.TrimPrefix(ext, "."),
		"{dir}", filepath.Dir(file),
		"{pointer}", refpath.FileSegment(pointer),
		"{pointer_raw}", raw,
		"{pointer_strict}", url.PathEscape(raw),
	).Replace(template)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// generate merges the groups of job's nodes into its target file.
func (uc *GenerateUseCase) generate(ctx context.Context, job generateJob) error {
	var nodes []domain.ResolvedNode
	for _, src := range job.sources {
		resolved, err := uc.resolver.Resolve(ctx, src.ref)
		var unresolved *domain.RefResolutionError
		if src.optional && errors.As(err, &unresolved) && unresolved.From == "" {
			uc.logger.Debug("path selects nothing", "ref", refpath.Format(src.ref))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", refpath.Format(src.ref), err)
		}
		nodes = append(nodes, resolved...)
	}

	existing, err := uc.documents.Load(ctx, job.target)
	if errors.Is(err, fs.ErrNotExist) {
		existing, err = &domain.Document{Location: job.target, Root: map[string]any{}}, nil
	}
	if err != nil {
		return fmt.Errorf("failed to read existing test-spec: %w", err)
	}
	root, ok := existing.Root.(map[string]any)
	if !ok {
		return fmt.Errorf("existing test-spec %s is not a mapping", job.target)
	}

	targetDir := filepath.Dir(job.target)
	tests := uc.existingTests(existing, root)
	for _, n := range nodes {
		key := refpath.FormatPointer(refpath.Rel(targetDir, n.Document.Location), n.Pointer)
		group := tests.group(key)
		ensureGroup(group)
		mergeExamples(group, n)
	}

	out := parser.NewMapping()
	if _, ok := root["version"]; !ok {
		parser.SetMapValue(out, "version", parser.StringNode(domain.RecommendedSpecVersion))
	}
	for _, k := range existing.Keys("", root) {
		if k == "tests" {
			parser.SetMapValue(out, k, tests.node)
			continue
		}
		parser.SetMapValue(out, k, parser.ValueToNode(root[k], existing, "/"+jsonpointer.Escape(k)))
	}
	if _, ok := root["tests"]; !ok {
		parser.SetMapValue(out, "tests", tests.node)
	}

	uc.parser.SetOutputFormat(domain.DetectFormat(job.target))
	data, err := uc.parser.MarshalNode(documentNode(out))
	if err != nil {
		return fmt.Errorf("failed to marshal test-spec: %w", err)
	}
	if err := uc.writer.Write(job.target, data); err != nil {
		return fmt.Errorf("failed to write test-spec: %w", err)
	}
	uc.logger.Info("generated test-spec", "path", job.target, "refs", len(nodes))
	return nil
}

// testsNode is the tests mapping under construction.
type testsNode struct {
	node *yaml.Node
}

func (uc *GenerateUseCase) existingTests(doc *domain.Document, root map[string]any) testsNode {
	tests, ok := root["tests"].(map[string]any)
	if !ok {
		return testsNode{node: parser.NewMapping()}
	}
	return testsNode{node: parser.ValueToNode(tests, doc, "/tests")}
}

// group returns the mapping for key, adding an empty one when missing.
func (t testsNode) group(key string) *yaml.Node {
	g := parser.GetMapValue(t.node, key)
	if g != nil && g.Kind == yaml.MappingNode {
		return g
	}
	g = parser.NewMapping()
	parser.SetMapValue(t.node, key, g)
	return g
}

func ensureGroup(group *yaml.Node) {
	for _, bucket := range []string{string(domain.BucketValid), string(domain.BucketInvalid)} {
		if parser.GetMapValue(group, bucket) == nil {
			parser.SetMapValue(group, bucket, nullNode())
		}
	}
}

// mergeExamples prepends the node's schema examples that the valid bucket
// does not contain yet.
func mergeExamples(group *yaml.Node, n domain.ResolvedNode) {
	schema, _ := n.Schema.(map[string]any)
	examples, _ := schema["examples"].([]any)
	if len(examples) == 0 {
		return
	}
	valid := parser.GetMapValue(group, string(domain.BucketValid))
	if valid == nil || valid.Kind != yaml.MappingNode {
		valid = parser.NewMapping()
		parser.SetMapValue(group, string(domain.BucketValid), valid)
	}

	var missing []*yaml.Node
	for i, example := range examples {
		name := refpath.ExamplesKey(n.Pointer, i)
		if parser.GetMapValue(valid, name) != nil {
			continue
		}
		entry := parser.NewMapping()
		payload := deepcopy.Copy(example)
		parser.SetMapValue(entry, "payload", parser.ValueToNode(payload, n.Document, fmt.Sprintf("%s/examples/%d", n.Pointer, i)))
		parser.SetMapValue(entry, "from_examples", parser.BoolNode(true))
		missing = append(missing, parser.StringNode(name), entry)
	}
	valid.Content = append(missing, valid.Content...)
}
