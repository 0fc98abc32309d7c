package refpath

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/yaccob/teds/internal/domain"
)

var jqIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Pointer returns the JSON pointer of a wildcard-free reference.
func Pointer(ref domain.SchemaRef) (string, bool) {
	segs, err := Segments(ref.Selector)
	if err != nil || hasWildcard(segs) {
		return "", false
	}
	return ToPointer(segs), true
}

// Format renders ref as file#/pointer. Wildcards render as "*" tokens and an
// expanded reference ends in "/*".
func Format(ref domain.SchemaRef) string {
	segs, err := Segments(ref.Selector)
	if err != nil {
		return ref.File + "#" + ref.Selector
	}
	if ref.Expand {
		segs = append(segs, Segment{Wildcard: true})
	}
	return ref.File + "#" + ToPointer(segs)
}

// FormatPointer renders a location and a concrete pointer as a reference key.
func FormatPointer(location, pointer string) string {
	return location + "#" + pointer
}

// JQPath renders a JSON pointer as a jq path prefix: identifier keys as
// .key, anything else as .["key"]. The root renders as "".
func JQPath(pointer string) string {
	var b strings.Builder
	for _, s := range pointerSegments(pointer) {
		if jqIdentifier.MatchString(s.Key) {
			b.WriteString(".")
			b.WriteString(s.Key)
			continue
		}
		b.WriteString(`.[`)
		b.WriteString(strconv.Quote(s.Key))
		b.WriteString(`]`)
	}
	return b.String()
}

// ExamplesKey is the case name of the i-th schema example below pointer.
func ExamplesKey(pointer string, i int) string {
	return JQPath(pointer) + ".examples[" + strconv.Itoa(i) + "]"
}

// FileSegment renders a pointer for use inside a file name: tokens stay
// RFC 6901 escaped, literal "+" is doubled and "+" joins the tokens.
func FileSegment(pointer string) string {
	segs := pointerSegments(pointer)
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, strings.ReplaceAll(jsonpointer.Escape(s.Key), "+", "++"))
	}
	return strings.Join(parts, "+")
}
