package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/yaccob/teds"
	"github.com/yaccob/teds/internal/domain"
)

//go:embed version.txt
var version string

func init() {
	version = strings.TrimSpace(version)
	if version == "" {
		version = "0.1.0" // fallback
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globalFlags apply to every command.
type globalFlags struct {
	allowNetwork    bool
	networkTimeout  float64
	networkMaxBytes int64
	quiet           bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globalFlags
	fs := flag.NewFlagSet("teds", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	fs.BoolVar(&g.allowNetwork, "allow-network", false, "Allow loading http(s) $ref targets")
	fs.Float64Var(&g.networkTimeout, "network-timeout", 0, "Timeout of a single remote fetch in seconds")
	fs.Int64Var(&g.networkMaxBytes, "network-max-bytes", 0, "Size limit of a single remote document")
	fs.BoolVar(&g.quiet, "q", false, "Suppress progress messages")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return domain.ExitOK
		}
		return domain.ExitFatal
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return domain.ExitFatal
	}

	command, rest := rest[0], rest[1:]
	switch command {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "teds %s (spec supported: %s; recommended: %d.%d)\n",
			version, domain.SupportedSpecRange(), domain.SupportedSpecMajor, domain.RecommendedSpecMinor)
		return domain.ExitOK

	case "help", "-help", "-h", "--help":
		printUsage(stderr)
		return domain.ExitOK

	case "verify":
		return runVerify(ctx, g, rest, stdout, stderr)

	case "generate":
		return runGenerate(ctx, g, rest, stderr)
	}

	fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
	printUsage(stderr)
	return domain.ExitFatal
}

func runVerify(ctx context.Context, g globalFlags, args []string, stdout, stderr io.Writer) int {
	var (
		level        string
		inPlace      bool
		checkOpenAPI bool
	)

	verifyCmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	verifyCmd.SetOutput(stderr)
	verifyCmd.StringVar(&level, "l", "warning", "Output level: all, warning or error")
	verifyCmd.StringVar(&level, "output-level", "warning", "Output level: all, warning or error")
	verifyCmd.BoolVar(&inPlace, "i", false, "Rewrite each test-spec in place")
	verifyCmd.BoolVar(&inPlace, "in-place", false, "Rewrite each test-spec in place")
	verifyCmd.BoolVar(&checkOpenAPI, "check-openapi", false, "Validate referenced OpenAPI 3.0 documents before use")
	if err := verifyCmd.Parse(args); err != nil {
		return domain.ExitFatal
	}

	outputLevel, ok := domain.ParseOutputLevel(level)
	if !ok {
		fmt.Fprintf(stderr, "Error: invalid output level %q (want all, warning or error)\n", level)
		return domain.ExitFatal
	}
	specs := verifyCmd.Args()
	if len(specs) == 0 {
		fmt.Fprintf(stderr, "Error: at least one SPEC is required\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  teds verify [-l all|warning|error] [-i] [--check-openapi] SPEC...\n")
		return domain.ExitFatal
	}

	runner := newRunner(g, teds.WithOpenAPICheck(checkOpenAPI))
	progress := NewSimpleProgress(stderr, !g.quiet)

	// Nothing is printed or rewritten until every spec has been verified.
	var (
		results []teds.VerifyResponse
		total   teds.Counts
	)
	for _, spec := range specs {
		if inPlace {
			progress.Update(fmt.Sprintf("Updating %s", spec))
		} else {
			progress.Update(fmt.Sprintf("Verifying %s", spec))
		}

		resp, err := runner.Verify(ctx, teds.VerifyRequest{Path: spec, Level: outputLevel, InPlace: inPlace, DeferWrite: true})
		if err != nil && !errors.Is(err, teds.ErrCaseFailures) {
			printError(stderr, err)
			return domain.ExitFatal
		}
		results = append(results, resp)
		total.Merge(resp.Counts)
	}

	for _, resp := range results {
		if !inPlace {
			stdout.Write(resp.Output)
			continue
		}
		if err := runner.Write(resp); err != nil {
			printError(stderr, err)
			return domain.ExitFatal
		}
	}
	if len(specs) > 1 {
		progress.Update(fmt.Sprintf("Total: %d success, %d warning, %d error", total.Success, total.Warning, total.Error))
	}
	if total.Error > 0 {
		return domain.ExitCaseErrors
	}
	return domain.ExitOK
}

func runGenerate(ctx context.Context, g globalFlags, args []string, stderr io.Writer) int {
	generateCmd := flag.NewFlagSet("generate", flag.ContinueOnError)
	generateCmd.SetOutput(stderr)
	if err := generateCmd.Parse(args); err != nil {
		return domain.ExitFatal
	}

	mappings := generateCmd.Args()
	if len(mappings) == 0 {
		fmt.Fprintf(stderr, "Error: at least one MAPPING is required\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  teds generate REF[=TARGET] | @config.yaml | '{\"schema.yaml\": [\"$.path.*\"]}' ...\n")
		return domain.ExitFatal
	}

	runner := newRunner(g)
	progress := NewSimpleProgress(stderr, !g.quiet)

	for _, mapping := range mappings {
		written, err := runner.Generate(ctx, mapping)
		for _, path := range written {
			progress.Update(fmt.Sprintf("Generating %s", path))
		}
		if err != nil {
			printError(stderr, err)
			return domain.ExitFatal
		}
	}
	return domain.ExitOK
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := teds.Hint(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

func networkOptions(g globalFlags) []teds.Option {
	opts := []teds.Option{teds.WithNetwork(g.allowNetwork)}
	if g.networkTimeout > 0 {
		opts = append(opts, teds.WithNetworkTimeout(time.Duration(g.networkTimeout*float64(time.Second))))
	}
	if g.networkMaxBytes > 0 {
		opts = append(opts, teds.WithNetworkMaxBytes(g.networkMaxBytes))
	}
	return opts
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `teds - test-driven JSON Schema and OpenAPI schema development

Usage:
  teds [--allow-network] [--network-timeout SEC] [--network-max-bytes N] [-q] <command> [flags]

Commands:
  verify    Evaluate the cases of one or more test-specs
            teds verify [-l all|warning|error] [-i] [--check-openapi] SPEC...
  generate  Create or extend test-specs from schema references
            teds generate REF[=TARGET] | @config.yaml | INLINE-CONFIG ...
  version   Show version
  help      Show this help

Exit codes:
  0  no case failed
  1  at least one case evaluated to ERROR
  2  fatal error (I/O, parse, reference, network, version)

Examples:
  teds verify user.tests.yaml
  teds verify -l all -i user.tests.yaml
  teds generate schema.yaml#/components/schemas
  teds generate 'schema.yaml#/$defs=tests/{base}.tests.yaml'

`)
}
