package hdf5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttrPath(t *testing.T) {
	for _, tc := range []struct{ in, obj, name string }{
		{"/@generator", "/", "generator"},
		{"/stats@snapshots", "/stats", "snapshots"},
		{"stats/core@id", "/stats/core", "id"},
		{"/stats/@id", "/stats", "id"},
		{"/a@b@c", "/a@b", "c"},
	} {
		obj, name, err := ParseAttrPath(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.obj, obj, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		if tc.obj != "/stats/core" && tc.in != "/stats/@id" {
			assert.Equal(t, tc.in, JoinAttrPath(obj, name))
		}
	}
	for _, bad := range []string{"", "/stats", "/stats@"} {
		_, _, err := ParseAttrPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/", CleanPath(""))
	assert.Equal(t, "/a/b", CleanPath("a/b/"))
	assert.Equal(t, []string{"a", "b"}, splitPath("//a//b/"))
	assert.Nil(t, splitPath("/"))
	assert.Equal(t, "/stats", childPath("/", "stats"))
	assert.Equal(t, "/stats/core", childPath("/stats", "core"))
	assert.Equal(t, "core", baseName("/stats/core"))
	assert.Equal(t, "/", baseName("/"))
}
