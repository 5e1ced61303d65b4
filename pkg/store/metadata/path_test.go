package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Run("ValidPaths", func(t *testing.T) {
		cases := map[string]string{
			"/":             "/",
			"//":            "/",
			"/Docs":         "/Docs",
			"/Docs/":        "/Docs",
			"/Docs//sub":    "/Docs/sub",
			"/a/b/c":        "/a/b/c",
			"/with space":   "/with space",
			"/Docs/file.tx": "/Docs/file.tx",
		}
		for input, want := range cases {
			got, err := NormalizePath(input)
			require.NoError(t, err, "input %q", input)
			assert.Equal(t, want, got, "input %q", input)
		}
	})

	t.Run("InvalidPaths", func(t *testing.T) {
		for _, input := range []string{"", "relative", "relative/path", "/a/../b", "/a/./b", "/.."} {
			_, err := NormalizePath(input)
			require.Error(t, err, "input %q", input)
			assert.True(t, IsValidation(err), "input %q", input)
		}
	})
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"a", "file.txt", "with space", "ünïcode"} {
		assert.NoError(t, ValidateName(name), "name %q", name)
	}

	for _, name := range []string{"", ".", "..", "a/b", "nul\x00byte"} {
		err := ValidateName(name)
		require.Error(t, err, "name %q", name)
		assert.True(t, IsValidation(err), "name %q", name)
	}
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/a", JoinPath("/", "a"))
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))
	assert.Equal(t, "/a/b/c", JoinPath("/a/b", "c"))
}

func TestHasPathPrefix(t *testing.T) {
	assert.True(t, HasPathPrefix("/Foo", "/Foo"))
	assert.True(t, HasPathPrefix("/Foo/bar", "/Foo"))
	assert.True(t, HasPathPrefix("/Foo/bar/baz", "/Foo"))
	assert.True(t, HasPathPrefix("/anything", "/"))

	// Segment boundaries: /FooBar is not inside /Foo.
	assert.False(t, HasPathPrefix("/FooBar", "/Foo"))
	assert.False(t, HasPathPrefix("/Fo", "/Foo"))
	assert.False(t, HasPathPrefix("/Bar/Foo", "/Foo"))
}

func TestReplacePathPrefix(t *testing.T) {
	assert.Equal(t, "/Z", ReplacePathPrefix("/A", "/A", "/Z"))
	assert.Equal(t, "/Z/b", ReplacePathPrefix("/A/b", "/A", "/Z"))
	assert.Equal(t, "/X/Y/b/c", ReplacePathPrefix("/A/b/c", "/A", "/X/Y"))
	assert.Equal(t, "/b", ReplacePathPrefix("/A/b", "/A", "/"))
}
