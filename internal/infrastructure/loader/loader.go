package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/refpath"
)

// Network defaults and the environment variables overriding them.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxBytes = 5 * 1024 * 1024

	EnvTimeout  = "TEDS_NETWORK_TIMEOUT"
	EnvMaxBytes = "TEDS_NETWORK_MAX_BYTES"
)

// Config is the network policy for remote documents.
type Config struct {
	AllowNetwork bool
	Timeout      time.Duration
	MaxBytes     int64
}

// ConfigFromEnv returns the default policy with environment overrides
// applied. Unparsable or non-positive values are ignored.
func ConfigFromEnv(lookup func(string) (string, bool)) Config {
	cfg := Config{Timeout: DefaultTimeout, MaxBytes: DefaultMaxBytes}
	if lookup == nil {
		return cfg
	}
	if v, ok := lookup(EnvTimeout); ok {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs * float64(time.Second))
		}
	}
	if v, ok := lookup(EnvMaxBytes); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			cfg.MaxBytes = n
		}
	}
	return cfg
}

// FileLoader loads local files and, when allowed, HTTP(S) resources.
type FileLoader struct {
	client *http.Client
	cfg    Config
}

// NewFileLoader creates a new FileLoader. Zero limits fall back to the defaults.
func NewFileLoader(cfg Config) *FileLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &FileLoader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
	}
}

// Load reads a local file or fetches an HTTP(S) resource.
func (fl *FileLoader) Load(ctx context.Context, location string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if refpath.IsURL(location) {
		return fl.loadHTTP(ctx, location)
	}
	path := refpath.Abs("", location)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.IOError{Path: path, Err: err}
	}
	return data, nil
}

// loadHTTP fetches url honoring the network policy.
func (fl *FileLoader) loadHTTP(ctx context.Context, url string) ([]byte, error) {
	if !fl.cfg.AllowNetwork {
		return nil, &domain.NetworkError{URL: url, Reason: "network access is disabled", Disabled: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Reason: "invalid request", Err: err}
	}

	resp, err := fl.client.Do(req)
	if err != nil {
		return nil, fl.transportError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.NetworkError{URL: url, Reason: fmt.Sprintf("HTTP error: %s", resp.Status)}
	}
	if resp.ContentLength > fl.cfg.MaxBytes {
		return nil, fl.tooLarge(url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, fl.cfg.MaxBytes+1))
	if err != nil {
		return nil, fl.transportError(url, err)
	}
	if int64(len(data)) > fl.cfg.MaxBytes {
		return nil, fl.tooLarge(url)
	}

	return data, nil
}

func (fl *FileLoader) tooLarge(url string) error {
	return &domain.NetworkError{URL: url, Reason: fmt.Sprintf("response exceeds %d bytes", fl.cfg.MaxBytes)}
}

func (fl *FileLoader) transportError(url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.NetworkError{URL: url, Reason: fmt.Sprintf("timed out after %s", fl.cfg.Timeout), Err: err}
	}
	return &domain.NetworkError{URL: url, Reason: "request failed", Err: err}
}
