package teds

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSchema = `type: object
$defs:
  Age:
    type: integer
    minimum: 0
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestVerify_Simple(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "schema.yaml", testSchema)
	spec := writeFile(t, tmpDir, "age.tests.yaml", `version: "1.0.0"
tests:
  schema.yaml#/$defs/Age:
    valid:
      "0": {}
    invalid:
      "-1": {}
`)

	resp, err := New().Verify(context.Background(), VerifyRequest{Path: spec, Level: LevelAll})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if resp.Counts != (Counts{Success: 2}) {
		t.Errorf("Verify() counts = %+v, want 2 successes", resp.Counts)
	}
	if !strings.Contains(string(resp.Output), "result: SUCCESS") {
		t.Errorf("Verify() output = %s, want rendered results", resp.Output)
	}
	if ExitCode(err) != 0 {
		t.Errorf("ExitCode() = %d, want 0", ExitCode(err))
	}
}

func TestVerify_CaseFailures(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "schema.yaml", testSchema)
	spec := writeFile(t, tmpDir, "age.tests.yaml", `version: "1.0.0"
tests:
  schema.yaml#/$defs/Age:
    valid:
      "-1": {}
`)

	resp, err := New().Verify(context.Background(), VerifyRequest{Path: spec})
	if !errors.Is(err, ErrCaseFailures) {
		t.Fatalf("Verify() error = %v, want ErrCaseFailures", err)
	}
	if resp.Counts.Error != 1 || len(resp.Output) == 0 {
		t.Errorf("Verify() response = %+v, want the rendered failure", resp)
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode() = %d, want 1", ExitCode(err))
	}
}

func TestRunner_DeferredWrite(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "schema.yaml", testSchema)
	content := `version: "1.0.0"
tests:
  schema.yaml#/$defs/Age:
    valid:
      "-1": {}
`
	spec := writeFile(t, tmpDir, "age.tests.yaml", content)

	r := New()
	resp, err := r.Verify(context.Background(), VerifyRequest{Path: spec, InPlace: true, DeferWrite: true})
	if !errors.Is(err, ErrCaseFailures) {
		t.Fatalf("Verify() error = %v, want ErrCaseFailures", err)
	}
	data, _ := os.ReadFile(spec)
	if string(data) != content {
		t.Fatalf("spec rewritten before Write(): %s", data)
	}

	if err := r.Write(resp); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, _ = os.ReadFile(spec)
	if string(data) != string(resp.Output) || !strings.Contains(string(data), "result: ERROR") {
		t.Errorf("Write() left %s, want the rendered result", data)
	}

	// responses without a pending rewrite are ignored
	plain, _ := r.Verify(context.Background(), VerifyRequest{Path: spec})
	if err := r.Write(plain); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	after, _ := os.ReadFile(spec)
	if string(after) != string(data) {
		t.Errorf("Write() of a plain response changed the spec")
	}
}

func TestVerify_FileNotFound(t *testing.T) {
	_, err := New().Verify(context.Background(), VerifyRequest{Path: "nonexistent.tests.yaml"})
	if err == nil {
		t.Fatal("Expected error for nonexistent file")
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode() = %d, want 2", ExitCode(err))
	}
}

func TestVerify_NetworkRefusedByDefault(t *testing.T) {
	tmpDir := t.TempDir()
	spec := writeFile(t, tmpDir, "remote.tests.yaml", `version: "1.0.0"
tests:
  http://127.0.0.1:1/schema.yaml#/$defs/Age:
    valid:
      "1": {}
`)

	_, err := New().Verify(context.Background(), VerifyRequest{Path: spec})
	if err == nil {
		t.Fatal("Expected error for a remote reference")
	}
	if !strings.Contains(Hint(err), "--allow-network") {
		t.Errorf("Hint() = %q, want the network flag named", Hint(err))
	}
}

func TestVerify_OpenAPICheck(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "api.yaml", `openapi: 3.0.0
components:
  schemas:
    Id:
      type: integer
`)
	spec := writeFile(t, tmpDir, "api.tests.yaml", `version: "1.0.0"
tests:
  api.yaml#/components/schemas/Id:
    valid:
      "1": {}
`)

	if _, err := New().Verify(context.Background(), VerifyRequest{Path: spec}); err != nil {
		t.Fatalf("Verify() without check error = %v", err)
	}
	_, err := New(WithOpenAPICheck(true)).Verify(context.Background(), VerifyRequest{Path: spec})
	if err == nil {
		t.Fatal("Expected error for an OpenAPI document without info")
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode() = %d, want 2", ExitCode(err))
	}
}

func TestConfig_NetworkPrecedence(t *testing.T) {
	env := map[string]string{
		"TEDS_NETWORK_TIMEOUT":   "7",
		"TEDS_NETWORK_MAX_BYTES": "100",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name        string
		opts        []Option
		wantTimeout time.Duration
		wantMax     int64
	}{
		{name: "environment", opts: nil, wantTimeout: 7 * time.Second, wantMax: 100},
		{name: "options win", opts: []Option{WithNetworkTimeout(time.Second), WithNetworkMaxBytes(10)}, wantTimeout: time.Second, wantMax: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultConfig()
			for _, opt := range append([]Option{WithEnv(lookup)}, tt.opts...) {
				opt(config)
			}
			got := config.networkConfig()
			if got.Timeout != tt.wantTimeout || got.MaxBytes != tt.wantMax {
				t.Errorf("networkConfig() = %+v, want timeout %v and max %d", got, tt.wantTimeout, tt.wantMax)
			}
			if got.AllowNetwork {
				t.Error("networkConfig() allows network by default")
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	tmpDir := t.TempDir()
	schema := writeFile(t, tmpDir, "schema.yaml", testSchema)

	r := New()
	written, err := r.Generate(context.Background(), schema+"#/$defs")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	want := filepath.Join(tmpDir, "schema.$defs.tests.yaml")
	if len(written) != 1 || written[0] != want {
		t.Fatalf("Generate() = %v, want [%s]", written, want)
	}

	// the generated skeleton verifies cleanly
	resp, err := r.Verify(context.Background(), VerifyRequest{Path: want, Level: LevelAll})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if resp.Counts != (Counts{}) {
		t.Errorf("Verify() counts = %+v, want no cases", resp.Counts)
	}
}

func ExampleVerify() {
	ctx := context.Background()

	// Verify with default settings
	_, err := Verify(ctx, "user.tests.yaml")
	if err != nil {
		// handle error
		return
	}
}

func ExampleNew() {
	ctx := context.Background()

	// Create a runner with custom options
	r := New(
		WithNetwork(true),
		WithNetworkTimeout(10*time.Second),
		WithOpenAPICheck(true),
	)

	_, err := r.Verify(ctx, VerifyRequest{Path: "user.tests.yaml", InPlace: true})
	if err != nil {
		// handle error
		return
	}
}
