package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
)

func TestFileLoader_Load_LocalFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.yaml")
	content := []byte("type: string\n")

	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	loader := NewFileLoader(Config{})
	data, err := loader.Load(context.Background(), testFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if string(data) != string(content) {
		t.Errorf("Load() = %v, want %v", string(data), string(content))
	}

	viaURL, err := loader.Load(context.Background(), "file://"+filepath.ToSlash(testFile))
	if err != nil {
		t.Fatalf("Load(file://) error = %v", err)
	}
	if string(viaURL) != string(content) {
		t.Errorf("Load(file://) = %v, want %v", string(viaURL), string(content))
	}
}

func TestFileLoader_Load_FileNotFound(t *testing.T) {
	loader := NewFileLoader(Config{})

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "nonexistent.yaml"))
	var ioErr *domain.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Load() error = %v, want *domain.IOError", err)
	}
}

func TestFileLoader_Load_ContextCancelled(t *testing.T) {
	loader := NewFileLoader(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "test.yaml")
	if err == nil {
		t.Error("Load() expected error for cancelled context")
	}
}

func TestFileLoader_Load_NetworkDisabledByDefault(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("type: string\n"))
	}))
	defer server.Close()

	loader := NewFileLoader(ConfigFromEnv(nil))
	_, err := loader.Load(context.Background(), server.URL+"/schema.yaml")

	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) || !netErr.Disabled {
		t.Fatalf("Load() error = %v, want disabled *domain.NetworkError", err)
	}
	if !strings.Contains(domain.HintOf(err), "--allow-network") {
		t.Errorf("HintOf() = %q, want --allow-network hint", domain.HintOf(err))
	}
	if called {
		t.Error("Load() contacted the server although network is disabled")
	}
}

func TestFileLoader_Load_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/schema.yaml":
			w.Write([]byte("type: string\n"))
		case "/big.yaml":
			w.Write([]byte(strings.Repeat("a", 64)))
		case "/slow.yaml":
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte("type: string\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := NewFileLoader(Config{AllowNetwork: true, Timeout: 100 * time.Millisecond, MaxBytes: 32})
	ctx := context.Background()

	data, err := loader.Load(ctx, server.URL+"/schema.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != "type: string\n" {
		t.Errorf("Load() = %q", data)
	}

	tests := []struct {
		name   string
		path   string
		reason string
	}{
		{name: "too large", path: "/big.yaml", reason: "exceeds 32 bytes"},
		{name: "timeout", path: "/slow.yaml", reason: "timed out"},
		{name: "not found", path: "/missing.yaml", reason: "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(ctx, server.URL+tt.path)
			var netErr *domain.NetworkError
			if !errors.As(err, &netErr) {
				t.Fatalf("Load() error = %v, want *domain.NetworkError", err)
			}
			if !strings.Contains(netErr.Reason, tt.reason) {
				t.Errorf("NetworkError.Reason = %q, want it to contain %q", netErr.Reason, tt.reason)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		EnvTimeout:  "0.5",
		EnvMaxBytes: "1024",
	}
	cfg := ConfigFromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %v, want 500ms", cfg.Timeout)
	}
	if cfg.MaxBytes != 1024 {
		t.Errorf("MaxBytes = %d, want 1024", cfg.MaxBytes)
	}
	if cfg.AllowNetwork {
		t.Error("AllowNetwork should default to false")
	}

	env[EnvTimeout] = "soon"
	env[EnvMaxBytes] = "-1"
	cfg = ConfigFromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Timeout != DefaultTimeout || cfg.MaxBytes != DefaultMaxBytes {
		t.Errorf("invalid env values should be ignored, got %+v", cfg)
	}
}

func TestDocumentLoader_Load(t *testing.T) {
	tmpDir := t.TempDir()
	schema := filepath.Join(tmpDir, "schema.yaml")
	if err := os.WriteFile(schema, []byte("$defs:\n  B: {type: string}\n  A: {type: integer}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(tmpDir, "empty.yaml")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	dup := filepath.Join(tmpDir, "dup.yaml")
	if err := os.WriteFile(dup, []byte("a: 1\na: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewDocumentLoader(NewFileLoader(Config{}), nil)
	ctx := context.Background()

	doc, err := l.Load(ctx, schema)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defs := doc.Root.(map[string]any)["$defs"].(map[string]any)
	if keys := doc.Keys("/$defs", defs); strings.Join(keys, ",") != "B,A" {
		t.Errorf("Keys() = %v, want [B A]", keys)
	}

	doc, err = l.Load(ctx, empty)
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if m, ok := doc.Root.(map[string]any); !ok || len(m) != 0 {
		t.Errorf("Load(empty) root = %#v, want empty map", doc.Root)
	}

	_, err = l.Load(ctx, dup)
	var parseErr *domain.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Load(dup) error = %v, want *domain.ParseError", err)
	}

	types := filepath.Join(tmpDir, "common", "types.yaml")
	if err := os.MkdirAll(filepath.Dir(types), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(types, []byte("Id: {type: integer}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	doc, err = l.Load(ctx, refpath.ResolveFrom(schema, "common/types.yaml"))
	if err != nil {
		t.Fatalf("Load(sibling) error = %v", err)
	}
	if doc.Location != types {
		t.Errorf("Load(sibling) location = %q, want %q", doc.Location, types)
	}
}
