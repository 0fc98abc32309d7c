package refpath

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaccob/teds/internal/domain"
)

func TestNormalize_PointerAndPathAgree(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		pointer string
		path    string
	}{
		{name: "defs container", pointer: "schema.yaml#/$defs", path: `schema.yaml#$["$defs"].*`},
		{name: "explicit trailing wildcard", pointer: "schema.yaml#/$defs/*", path: `schema.yaml#$["$defs"][*]`},
		{name: "nested", pointer: "schema.yaml#/components/schemas", path: "schema.yaml#$.components.schemas.*"},
		{name: "array index", pointer: "schema.yaml#/items/0", path: "schema.yaml#$.items[0].*"},
		{name: "escaped slash", pointer: "schema.yaml#/paths/~1users", path: `schema.yaml#$.paths["/users"].*`},
		{name: "root children", pointer: "schema.yaml#/", path: "schema.yaml#$.*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Normalize(base, tt.pointer)
			require.NoError(t, err)
			q, err := Normalize(base, tt.path)
			require.NoError(t, err)
			assert.Equal(t, p, q)
			assert.True(t, p.Expand)
			assert.Equal(t, filepath.Join(base, "schema.yaml"), p.File)
		})
	}
}

func TestNormalize_ExplicitWildcardSelectsChildren(t *testing.T) {
	base := t.TempDir()

	implicit, err := Normalize(base, "schema.yaml#/$defs")
	require.NoError(t, err)
	explicit, err := Normalize(base, "schema.yaml#/$defs/*")
	require.NoError(t, err)

	assert.Equal(t, implicit, explicit)
	assert.Equal(t, `$['$defs']`, explicit.Selector)
	assert.True(t, explicit.Expand)

	inner, err := Normalize(base, "schema.yaml#/$defs/*/properties")
	require.NoError(t, err)
	assert.Equal(t, `$['$defs'][*]['properties']`, inner.Selector)
	assert.True(t, inner.Expand)
}

func TestNormalize_RootForms(t *testing.T) {
	base := t.TempDir()

	children, err := Normalize(base, "schema.yaml#/")
	require.NoError(t, err)
	bare, err := Normalize(base, "schema.yaml")
	require.NoError(t, err)
	hash, err := Normalize(base, "schema.yaml#")
	require.NoError(t, err)
	root, err := Normalize(base, "schema.yaml#$")
	require.NoError(t, err)

	assert.Equal(t, children, bare)
	assert.Equal(t, children, hash)
	assert.True(t, children.Expand)
	assert.False(t, root.Expand)
	assert.NotEqual(t, children, root)
	assert.Equal(t, RootSelector, root.Selector)
}

func TestNormalize_PathNeverExpandsImplicitly(t *testing.T) {
	ref, err := Normalize("/work", "schema.yaml#$.a.b")
	require.NoError(t, err)
	assert.False(t, ref.Expand)
	assert.Equal(t, "$['a']['b']", ref.Selector)

	interior, err := Normalize("/work", "schema.yaml#$.a[*].b")
	require.NoError(t, err)
	assert.False(t, interior.Expand)
	assert.Equal(t, "$['a'][*]['b']", interior.Selector)
	assert.True(t, hasWildcard(mustSegments(t, interior.Selector)))
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{name: "missing file", ref: "#/a/b"},
		{name: "parent navigation", ref: "schema.yaml#/../parent"},
		{name: "bad escape", ref: "schema.yaml#/a~2b"},
		{name: "unclosed bracket", ref: "schema.yaml#$[unclosed"},
		{name: "descent", ref: "schema.yaml#$..name"},
		{name: "negative index", ref: "schema.yaml#$.a[-1]"},
		{name: "anchor fragment", ref: "schema.yaml#Address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize("/work", tt.ref)
			require.Error(t, err)
			var malformed *domain.MalformedReferenceError
			assert.True(t, errors.As(err, &malformed), "got %T", err)
		})
	}
}

func TestParseConcrete(t *testing.T) {
	leaf, err := ParseConcrete("/work", "schema.yaml#/$defs/Address")
	require.NoError(t, err)
	assert.False(t, leaf.Expand)
	assert.Equal(t, "$['$defs']['Address']", leaf.Selector)

	root, err := ParseConcrete("/work", "schema.yaml#/")
	require.NoError(t, err)
	assert.Equal(t, domain.SchemaRef{File: "/work/schema.yaml", Selector: RootSelector}, root)

	_, err = ParseConcrete("/work", "schema.yaml#/$defs/*")
	require.Error(t, err)
}

func TestLiteral(t *testing.T) {
	exact, err := Literal("/work", "schema.yaml#/$defs")
	require.NoError(t, err)
	assert.False(t, exact.Expand)

	children, err := Literal("/work", "schema.yaml#/$defs/*")
	require.NoError(t, err)
	assert.True(t, children.Expand)
	assert.Equal(t, exact.Selector, children.Selector)
}

func TestSelectorRoundTrip(t *testing.T) {
	segs := []Segment{{Key: "it's"}, {Wildcard: true}, {Key: `back\slash`}, {Key: "ünï"}, {Key: ""}}
	sel := Selector(segs)
	got, err := Segments(sel)
	require.NoError(t, err)
	assert.Equal(t, segs, got)

	assert.Equal(t, "$['a']['b']", FromPointer("/a/b"))
	assert.Equal(t, "$['c']", Child("$", "c"))
}

func TestFormatting(t *testing.T) {
	ref, err := ParseConcrete("/work", "schema.yaml#/components/schemas/User")
	require.NoError(t, err)

	ptr, ok := Pointer(ref)
	require.True(t, ok)
	assert.Equal(t, "/components/schemas/User", ptr)
	assert.Equal(t, "/work/schema.yaml#/components/schemas/User", Format(ref))

	assert.Equal(t, ".components.schemas.User", JQPath(ptr))
	assert.Equal(t, `.["$defs"].Address.examples[0]`, ExamplesKey("/$defs/Address", 0))
	assert.Equal(t, ".examples[2]", ExamplesKey("", 2))
}

func TestFileSegment(t *testing.T) {
	tests := []struct {
		pointer string
		want    string
	}{
		{pointer: "/components/schemas", want: "components+schemas"},
		{pointer: "/$defs/Address", want: "$defs+Address"},
		{pointer: "/a+b/c", want: "a++b+c"},
		{pointer: "/paths/~1users", want: "paths+~1users"},
		{pointer: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileSegment(tt.pointer), tt.pointer)
	}
}

func TestAbsAndResolveFrom(t *testing.T) {
	assert.Equal(t, "/schemas/common.yaml", ResolveFrom("/schemas/api.yaml", "common.yaml"))
	assert.Equal(t, "/common.yaml", ResolveFrom("/schemas/api.yaml", "../common.yaml"))
	assert.Equal(t, "https://example.com/s/b.yaml", ResolveFrom("https://example.com/s/a.yaml", "b.yaml"))
	assert.Equal(t, "/tmp/x.yaml", Abs("/ignored", "file:///tmp/x.yaml"))
	assert.Equal(t, "https://h/x.yaml", Abs("/dir", "https://h/x.yaml"))
	assert.Equal(t, "a.yaml", Rel("/dir", "/dir/a.yaml"))
}

func mustSegments(t *testing.T, selector string) []Segment {
	t.Helper()
	segs, err := Segments(selector)
	require.NoError(t, err)
	return segs
}
