package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes reported by the CLI.
const (
	ExitOK         = 0
	ExitCaseErrors = 1
	ExitFatal      = 2
)

// Hinter is implemented by fatal errors that know the corrective action.
type Hinter interface {
	Hint() string
}

// IOError is returned when a local file cannot be read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	op := e.Op
	if op == "" {
		op = "read"
	}
	return fmt.Sprintf("cannot %s %s: %v", op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError is returned for YAML/JSON syntax errors, including duplicate keys.
type ParseError struct {
	Location string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Location, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NetworkError is returned when a remote fetch is disallowed or fails.
type NetworkError struct {
	URL      string
	Reason   string
	Disabled bool
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("network fetch %s: %s", e.URL, e.Reason)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Hint() string {
	if e.Disabled {
		return "re-run with --allow-network to permit HTTP/HTTPS $ref resolution"
	}
	return "raise --network-timeout / --network-max-bytes (or TEDS_NETWORK_TIMEOUT / TEDS_NETWORK_MAX_BYTES)"
}

// MalformedReferenceError is returned when the address part of a reference cannot be parsed.
type MalformedReferenceError struct {
	Ref    string
	Reason string
	Err    error
}

func (e *MalformedReferenceError) Error() string {
	msg := fmt.Sprintf("malformed reference %q", e.Ref)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedReferenceError) Unwrap() error { return e.Err }

func (e *MalformedReferenceError) Hint() string {
	return `use file.yaml#/json/pointer or a JSONPath starting with "$" (bracket notation for keys starting with "$")`
}

// RefResolutionError is returned when a reference target does not exist.
type RefResolutionError struct {
	Ref    string
	From   string
	Reason string
}

func (e *RefResolutionError) Error() string {
	msg := fmt.Sprintf("unresolvable reference %s", e.Ref)
	if e.From != "" {
		msg += " (referenced from " + e.From + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RefResolutionError) Hint() string {
	return "check that the referenced file exists and the JSON pointer names an existing node"
}

// CycleError is returned when a chain of $ref values loops back onto itself.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "reference cycle: " + strings.Join(e.Chain, " -> ")
}

func (e *CycleError) Hint() string {
	return "break the $ref loop so that every chain ends in a concrete schema"
}

// VersionIssue classifies a test-spec version rejection.
type VersionIssue string

const (
	VersionInvalid       VersionIssue = "invalid"
	VersionMajorMismatch VersionIssue = "major_mismatch"
	VersionMinorTooNew   VersionIssue = "minor_too_new"
)

// VersionMismatchError is returned by the version gate.
type VersionMismatchError struct {
	Declared string
	Issue    VersionIssue
	Major    int
	MaxMinor int
}

func (e *VersionMismatchError) Error() string {
	switch e.Issue {
	case VersionInvalid:
		v := e.Declared
		if v == "" {
			v = "<missing>"
		}
		return fmt.Sprintf("invalid testspec version: %s", v)
	case VersionMajorMismatch:
		return fmt.Sprintf("unsupported testspec version: %s (supported major: %d)", e.Declared, e.Major)
	default:
		return fmt.Sprintf("newer testspec minor not supported: %s (supported: %d.0-%d.%d)", e.Declared, e.Major, e.Major, e.MaxMinor)
	}
}

func (e *VersionMismatchError) Hint() string {
	return fmt.Sprintf("set version to %d.%d.0 or upgrade teds", e.Major, e.MaxMinor)
}

// SpecStructureError is returned when a test-spec does not match the test-spec schema.
type SpecStructureError struct {
	Path    string
	At      string
	Message string
}

func (e *SpecStructureError) Error() string {
	return fmt.Sprintf("spec validation failed: %s at %s: %s", e.Path, e.At, e.Message)
}

// InvalidDocumentError is returned by the optional OpenAPI document check.
type InvalidDocumentError struct {
	Location string
	Err      error
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid OpenAPI document %s: %v", e.Location, e.Err)
}

func (e *InvalidDocumentError) Unwrap() error { return e.Err }

// ErrCaseFailures signals that at least one case evaluated to ERROR.
var ErrCaseFailures = errors.New("one or more cases failed")

// ExitCode maps an error returned by a run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrCaseFailures) {
		return ExitCaseErrors
	}
	return ExitFatal
}

// HintOf returns the corrective action attached to err, if any.
func HintOf(err error) string {
	var h Hinter
	if errors.As(err, &h) {
		return h.Hint()
	}
	return ""
}
