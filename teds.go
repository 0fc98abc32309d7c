package teds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/cache"
	"github.com/yaccob/teds/internal/infrastructure/loader"
	"github.com/yaccob/teds/internal/infrastructure/resolver"
	"github.com/yaccob/teds/internal/infrastructure/validator"
	"github.com/yaccob/teds/internal/infrastructure/writer"
	"github.com/yaccob/teds/internal/usecase"
)

// Re-exported result types.
type (
	Counts      = domain.Counts
	OutputLevel = domain.OutputLevel
)

// Output levels.
const (
	LevelAll     = domain.LevelAll
	LevelWarning = domain.LevelWarning
	LevelError   = domain.LevelError
)

// ErrCaseFailures is returned by Verify when at least one case evaluated to ERROR.
var ErrCaseFailures = domain.ErrCaseFailures

// Option represents a configuration option for the runner
type Option func(*Config)

// Config holds the configuration for the runner
type Config struct {
	AllowNetwork    bool
	NetworkTimeout  time.Duration
	NetworkMaxBytes int64
	CheckOpenAPI    bool
	Logger          *slog.Logger
	// Getenv looks up environment overrides for the network limits.
	Getenv func(string) (string, bool)
}

// WithNetwork allows or refuses loading http(s) documents
func WithNetwork(allow bool) Option {
	return func(c *Config) {
		c.AllowNetwork = allow
	}
}

// WithNetworkTimeout sets the timeout of a single remote fetch (0 = environment or default)
func WithNetworkTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.NetworkTimeout = timeout
	}
}

// WithNetworkMaxBytes sets the size limit of a single remote document (0 = environment or default)
func WithNetworkMaxBytes(n int64) Option {
	return func(c *Config) {
		c.NetworkMaxBytes = n
	}
}

// WithOpenAPICheck validates every loaded OpenAPI 3.0 document before use
func WithOpenAPICheck(check bool) Option {
	return func(c *Config) {
		c.CheckOpenAPI = check
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithEnv replaces the environment lookup
func WithEnv(getenv func(string) (string, bool)) Option {
	return func(c *Config) {
		c.Getenv = getenv
	}
}

// defaultConfig returns the default configuration
func defaultConfig() *Config {
	return &Config{
		AllowNetwork: false,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Getenv:       os.LookupEnv,
	}
}

// networkConfig applies options over environment over defaults.
func (c *Config) networkConfig() loader.Config {
	cfg := loader.ConfigFromEnv(c.Getenv)
	cfg.AllowNetwork = c.AllowNetwork
	if c.NetworkTimeout > 0 {
		cfg.Timeout = c.NetworkTimeout
	}
	if c.NetworkMaxBytes > 0 {
		cfg.MaxBytes = c.NetworkMaxBytes
	}
	return cfg
}

// VerifyRequest names one test-spec to verify.
type VerifyRequest struct {
	Path    string
	Level   OutputLevel
	InPlace bool
	// DeferWrite leaves an in-place rewrite to a later call to Write.
	DeferWrite bool
}

// VerifyResponse is the rendered test-spec and the tally of its cases.
type VerifyResponse struct {
	// Location is the canonical path of the test-spec.
	Location string
	Output   []byte
	Counts   Counts

	pending bool
}

// Runner verifies test-specs and generates them from schemas. Documents are
// cached for the lifetime of the Runner, so a Runner is meant for one run.
// It is not safe for concurrent use.
type Runner struct {
	config   *Config
	cache    *cache.Cache
	verify   *usecase.VerifyUseCase
	generate *usecase.GenerateUseCase
}

// New creates a new Runner
func New(opts ...Option) *Runner {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger := config.Logger

	fileLoader := loader.NewFileLoader(config.networkConfig())
	documents := loader.NewDocumentLoader(fileLoader, logger)

	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	if config.CheckOpenAPI {
		cacheOpts = append(cacheOpts, cache.WithChecker(validator.NewOpenAPIChecker(fileLoader, logger)))
	}
	schemas := cache.New(documents, cacheOpts...)

	refResolver := resolver.NewResolver(schemas, logger)
	structure, err := validator.NewStructureValidator(usecase.SpecSchema())
	if err != nil {
		panic(fmt.Sprintf("teds: embedded test-spec schema: %v", err))
	}
	fileWriter := writer.NewFileWriter()

	return &Runner{
		config: config,
		cache:  schemas,
		verify: usecase.NewVerifyUseCase(
			documents,
			structure,
			refResolver,
			usecase.NewCaseEvaluator(validator.NewValidator(schemas)),
			fileWriter,
			logger,
		),
		generate: usecase.NewGenerateUseCase(documents, refResolver, fileWriter, logger),
	}
}

// Verify evaluates every case of one test-spec. With InPlace the file is
// rewritten, unless DeferWrite hands that to Write; the rendered document is
// returned either way. When a case
// evaluates to ERROR the response is complete and the error is ErrCaseFailures.
//
// Example:
//
//	r := teds.New()
//	resp, err := r.Verify(context.Background(), teds.VerifyRequest{Path: "user.tests.yaml"})
func (r *Runner) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	res, err := r.verify.Execute(ctx, req.Path, usecase.VerifyConfig{
		Level:      req.Level,
		InPlace:    req.InPlace,
		DeferWrite: req.DeferWrite,
	})
	r.cache.LogStats()
	if err != nil {
		return VerifyResponse{}, err
	}
	resp := VerifyResponse{
		Location: res.Location,
		Output:   res.Output,
		Counts:   res.Counts,
		pending:  req.InPlace && req.DeferWrite,
	}
	if res.Counts.Error > 0 {
		return resp, fmt.Errorf("%s: %w", req.Path, ErrCaseFailures)
	}
	return resp, nil
}

// Write performs the in-place rewrite a DeferWrite request left pending.
// Any other response is left alone.
//
// Example:
//
//	var pending []teds.VerifyResponse
//	for _, path := range paths {
//		resp, err := r.Verify(ctx, teds.VerifyRequest{Path: path, InPlace: true, DeferWrite: true})
//		if teds.ExitCode(err) == 2 {
//			return err // nothing written yet
//		}
//		pending = append(pending, resp)
//	}
//	for _, resp := range pending {
//		if err := r.Write(resp); err != nil {
//			return err
//		}
//	}
func (r *Runner) Write(resp VerifyResponse) error {
	if !resp.pending {
		return nil
	}
	return r.verify.Write(usecase.VerifyResult{Location: resp.Location, Output: resp.Output, Counts: resp.Counts})
}

// Generate writes test-spec skeletons for each mapping and returns the
// written paths. Relative paths resolve against the working directory.
//
// Example:
//
//	paths, err := teds.New().Generate(context.Background(), "schema.yaml#/components/schemas")
func (r *Runner) Generate(ctx context.Context, mappings ...string) ([]string, error) {
	baseDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	var written []string
	for _, mapping := range mappings {
		paths, err := r.generate.Execute(ctx, mapping, baseDir)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}
	r.cache.LogStats()
	return written, nil
}

// ExitCode maps an error returned by the Runner to a process exit code:
// 0 without error, 1 for failed cases, 2 for anything fatal.
func ExitCode(err error) int {
	return domain.ExitCode(err)
}

// Hint returns the corrective action for a fatal error, if one is known.
func Hint(err error) string {
	return domain.HintOf(err)
}

// Verify is a convenience function that verifies one test-spec with default settings
//
// Example:
//
//	resp, err := teds.Verify(context.Background(), "user.tests.yaml")
func Verify(ctx context.Context, path string) (VerifyResponse, error) {
	return New().Verify(ctx, VerifyRequest{Path: path})
}
