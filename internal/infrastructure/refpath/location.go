package refpath

import (
	"net/url"
	"path/filepath"
	"strings"
)

// IsURL reports whether location is an http or https URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Abs resolves location against base, which is either a directory or a
// document URL. file:// URLs become local paths.
func Abs(base, location string) string {
	if IsURL(location) {
		return location
	}
	if strings.HasPrefix(location, "file://") {
		if u, err := url.Parse(location); err == nil {
			return filepath.Clean(filepath.FromSlash(u.Path))
		}
	}
	if IsURL(base) {
		b, err := url.Parse(base)
		if err == nil {
			if r, err := url.Parse(location); err == nil {
				return b.ResolveReference(r).String()
			}
		}
		return location
	}
	if filepath.IsAbs(location) {
		return filepath.Clean(location)
	}
	if base == "" {
		if abs, err := filepath.Abs(location); err == nil {
			return abs
		}
		return filepath.Clean(location)
	}
	joined := filepath.Join(base, location)
	if abs, err := filepath.Abs(joined); err == nil {
		return abs
	}
	return joined
}

// ResolveFrom resolves location relative to the document at referrer.
// Local referrers resolve against their directory, remote ones per RFC 3986.
func ResolveFrom(referrer, location string) string {
	if IsURL(referrer) {
		return Abs(referrer, location)
	}
	return Abs(filepath.Dir(referrer), location)
}

// Dir returns the base against which references inside the document at
// location are resolved.
func Dir(location string) string {
	if IsURL(location) {
		return location
	}
	return filepath.Dir(location)
}

// Rel renders location relative to dir for display and generated keys.
// URLs and locations outside dir's volume are returned unchanged.
func Rel(dir, location string) string {
	if IsURL(location) || dir == "" {
		return location
	}
	rel, err := filepath.Rel(dir, location)
	if err != nil {
		return location
	}
	return filepath.ToSlash(rel)
}
