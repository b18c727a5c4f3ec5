package mapping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapCollection(t *testing.T) {
	ids := []int{1, 2, 3}
	got := WrapCollection(ids, "ids")
	wrapped, ok := got.(ParamMap)
	require.True(t, ok)
	assert.Equal(t, ids, wrapped["collection"])
	assert.Equal(t, ids, wrapped["list"])
	assert.Equal(t, ids, wrapped["ids"])
	assert.NotContains(t, wrapped, "array")

	names := [2]string{"ada", "tob"}
	got = WrapCollection(names, "")
	wrapped, ok = got.(ParamMap)
	require.True(t, ok)
	assert.Equal(t, names, wrapped["array"])
	assert.NotContains(t, wrapped, "collection")
	assert.Len(t, wrapped, 1)
}

func TestWrapCollection_Passthrough(t *testing.T) {
	assert.Nil(t, WrapCollection(nil, ""))
	assert.Equal(t, 42, WrapCollection(42, ""))
	assert.Equal(t, "plain", WrapCollection("plain", "name"))

	blob := []byte("raw bytes")
	assert.Equal(t, blob, WrapCollection(blob, ""))

	type rawKey []byte
	assert.Equal(t, rawKey("k"), WrapCollection(rawKey("k"), ""))

	m := map[string]any{"id": 1}
	assert.Equal(t, m, WrapCollection(m, ""))
}

func TestDefaultBounds(t *testing.T) {
	assert.Equal(t, 0, DefaultBounds.Offset)
	assert.Equal(t, math.MaxInt, DefaultBounds.Limit)
}
