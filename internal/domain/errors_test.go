package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCycleError_Error(t *testing.T) {
	err := &CycleError{Chain: []string{"a.yaml#/x", "b.yaml#/y", "a.yaml#/x"}}
	want := "reference cycle: a.yaml#/x -> b.yaml#/y -> a.yaml#/x"
	if got := err.Error(); got != want {
		t.Errorf("CycleError.Error() = %v, want %v", got, want)
	}
}

func TestMalformedReferenceError_Error(t *testing.T) {
	err := &MalformedReferenceError{Ref: "$[unclosed", Reason: "bad selector"}
	want := `malformed reference "$[unclosed": bad selector`
	if got := err.Error(); got != want {
		t.Errorf("MalformedReferenceError.Error() = %v, want %v", got, want)
	}
}

func TestVersionMismatchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *VersionMismatchError
		want string
	}{
		{"missing", &VersionMismatchError{Issue: VersionInvalid, Major: 1}, "invalid testspec version: <missing>"},
		{"major", &VersionMismatchError{Declared: "2.0.0", Issue: VersionMajorMismatch, Major: 1}, "unsupported testspec version: 2.0.0 (supported major: 1)"},
		{"minor", &VersionMismatchError{Declared: "1.3.0", Issue: VersionMinorTooNew, Major: 1, MaxMinor: 0}, "newer testspec minor not supported: 1.3.0 (supported: 1.0-1.0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	wrapped := fmt.Errorf("verify spec.yaml: %w", &CycleError{Chain: []string{"a", "a"}})
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"case failures", fmt.Errorf("spec.yaml: %w", ErrCaseFailures), ExitCaseErrors},
		{"fatal", wrapped, ExitFatal},
		{"plain", errors.New("boom"), ExitFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHintOf(t *testing.T) {
	err := fmt.Errorf("load: %w", &NetworkError{URL: "https://x", Reason: "disabled", Disabled: true})
	if got := HintOf(err); !strings.Contains(got, "--allow-network") {
		t.Errorf("HintOf() = %q, want mention of --allow-network", got)
	}
	if got := HintOf(errors.New("plain")); got != "" {
		t.Errorf("HintOf() = %q, want empty", got)
	}
}
