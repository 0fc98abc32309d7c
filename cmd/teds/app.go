package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/yaccob/teds"
)

// newRunner creates a Runner from the global flags and command specific options.
func newRunner(g globalFlags, opts ...teds.Option) *teds.Runner {
	all := append(networkOptions(g), teds.WithLogger(newLogger(os.LookupEnv)))
	return teds.New(append(all, opts...)...)
}

// newLogger writes diagnostics to stderr. The level comes from TEDS_LOG_LEVEL,
// then LOGLEVEL, and defaults to warn.
func newLogger(lookup func(string) (string, bool)) *slog.Logger {
	level := slog.LevelWarn
	for _, key := range []string{"TEDS_LOG_LEVEL", "LOGLEVEL"} {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.TrimSpace(v))); err == nil {
			level = l
		}
		break
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
