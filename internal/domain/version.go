package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Test-spec compatibility of this build.
const (
	SupportedSpecMajor    = 1
	SupportedSpecMaxMinor = 0
	RecommendedSpecMinor  = 0
)

// RecommendedSpecVersion is written into generated and rewritten test-specs.
var RecommendedSpecVersion = fmt.Sprintf("%d.%d.0", SupportedSpecMajor, RecommendedSpecMinor)

// SupportedSpecRange renders the supported range, e.g. "1.0-1.0".
func SupportedSpecRange() string {
	return fmt.Sprintf("%d.0-%d.%d", SupportedSpecMajor, SupportedSpecMajor, SupportedSpecMaxMinor)
}

type semver struct {
	major int
	minor int
	patch int
}

// parseSemver accepts MAJOR.MINOR.PATCH with optional -prerelease and +build suffixes.
func parseSemver(v string) (semver, error) {
	core := strings.TrimSpace(v)
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("invalid semver: %q", v)
	}
	var nums [3]int
	for i, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return semver{}, fmt.Errorf("invalid semver: %q", v)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return semver{}, fmt.Errorf("invalid semver: %q", v)
		}
		nums[i] = n
	}
	return semver{major: nums[0], minor: nums[1], patch: nums[2]}, nil
}

// CheckVersion gates a declared test-spec version: the major must match
// exactly and the minor must not exceed maxMinor. The patch is ignored.
func CheckVersion(declared string, major, maxMinor int) error {
	v, err := parseSemver(declared)
	if err != nil {
		return &VersionMismatchError{Declared: strings.TrimSpace(declared), Issue: VersionInvalid, Major: major, MaxMinor: maxMinor}
	}
	if v.major != major {
		return &VersionMismatchError{Declared: declared, Issue: VersionMajorMismatch, Major: major, MaxMinor: maxMinor}
	}
	if v.minor > maxMinor {
		return &VersionMismatchError{Declared: declared, Issue: VersionMinorTooNew, Major: major, MaxMinor: maxMinor}
	}
	return nil
}
