package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeachNode_RendersItemizedPlaceholders(t *testing.T) {
	loop, err := NewForeachNode(NewTextNode("#{item} = #{item}"), Foreach{
		Collection: "array",
		Item:       "item",
		Index:      "index",
		Open:       "(",
		Close:      ")",
		Separator:  "AND",
	})
	require.NoError(t, err)
	root := NewMixedNode(NewStaticTextNode("SELECT * FROM BLOG WHERE ID in"), loop)

	ctx := NewContext(map[string]any{"array": []string{"one", "two", "three"}})
	_, err = root.Apply(ctx)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT * FROM BLOG WHERE ID in (  #{__frch_item_0} = #{__frch_item_0} "+
			"AND #{__frch_item_1} = #{__frch_item_1} "+
			"AND #{__frch_item_2} = #{__frch_item_2} )",
		ctx.SQL())
}

func TestForeachNode_BindsItemizedValues(t *testing.T) {
	loop, err := NewForeachNode(NewTextNode("#{item}"), Foreach{
		Collection: "list",
		Item:       "item",
		Index:      "index",
		Separator:  ",",
	})
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"list": []string{"one", "two"}})
	_, err = loop.Apply(ctx)
	require.NoError(t, err)

	bindings := ctx.Bindings()
	assert.Equal(t, "one", bindings["__frch_item_0"])
	assert.Equal(t, "two", bindings["__frch_item_1"])
	assert.Equal(t, 0, bindings["__frch_index_0"])
	assert.Equal(t, 1, bindings["__frch_index_1"])

	assert.NotContains(t, bindings, "item")
	assert.NotContains(t, bindings, "index")
}

func TestForeachNode_MapIterationSortedByKey(t *testing.T) {
	loop, err := NewForeachNode(NewTextNode("#{key} = #{val}"), Foreach{
		Collection: "prefs",
		Item:       "val",
		Index:      "key",
		Separator:  ",",
	})
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"prefs": map[string]string{"b": "2", "a": "1"}})
	_, err = loop.Apply(ctx)
	require.NoError(t, err)

	assert.Equal(t,
		"#{__frch_key_0} = #{__frch_val_0} , #{__frch_key_1} = #{__frch_val_1}",
		ctx.SQL())

	bindings := ctx.Bindings()
	assert.Equal(t, "a", bindings["__frch_key_0"])
	assert.Equal(t, "1", bindings["__frch_val_0"])
	assert.Equal(t, "b", bindings["__frch_key_1"])
	assert.Equal(t, "2", bindings["__frch_val_1"])
}

func TestForeachNode_NestedCollectionPath(t *testing.T) {
	loop, err := NewForeachNode(NewTextNode("#{id}"), Foreach{
		Collection: "filter.ids",
		Item:       "id",
		Separator:  ",",
	})
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"filter": map[string]any{"ids": []int{4, 5}}})
	_, err = loop.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#{__frch_id_0} , #{__frch_id_1}", ctx.SQL())
}

func TestForeachNode_EmptyCollectionRendersNothing(t *testing.T) {
	loop, err := NewForeachNode(NewTextNode("#{item}"), Foreach{
		Collection: "ids",
		Item:       "item",
		Open:       "(",
		Close:      ")",
	})
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"ids": []int{}})
	applied, err := loop.Apply(ctx)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "", ctx.SQL())
}

func TestForeachNode_NilCollection(t *testing.T) {
	strict, err := NewForeachNode(NewTextNode("#{item}"), Foreach{
		Collection: "ids",
		Item:       "item",
	})
	require.NoError(t, err)

	_, err = strict.Apply(NewContext(map[string]any{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluated to nil")

	relaxed, err := NewForeachNode(NewTextNode("#{item}"), Foreach{
		Collection: "ids",
		Item:       "item",
		Nullable:   true,
	})
	require.NoError(t, err)

	ctx := NewContext(map[string]any{})
	applied, err := relaxed.Apply(ctx)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "", ctx.SQL())
}

func TestForeachNode_NotIterable(t *testing.T) {
	loop, err := NewForeachNode(NewTextNode("#{item}"), Foreach{
		Collection: "n",
		Item:       "item",
	})
	require.NoError(t, err)

	_, err = loop.Apply(NewContext(map[string]any{"n": 5}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not iterable")
}

func TestForeachNode_SkipsSeparatorForBlankIterations(t *testing.T) {
	cond, err := NewIfNode("item != 'skip'", NewTextNode("#{item}"))
	require.NoError(t, err)
	loop, err := NewForeachNode(cond, Foreach{
		Collection: "list",
		Item:       "item",
		Open:       "(",
		Close:      ")",
		Separator:  ",",
	})
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"list": []string{"skip", "two", "three"}})
	_, err = loop.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "(  #{__frch_item_1} , #{__frch_item_2} )", ctx.SQL())
}

func TestForeachNode_RewritesOnlyStandaloneNames(t *testing.T) {
	loop, err := NewForeachNode(
		NewTextNode("#{item.sku} #{item, mode=IN} #{ item} #{itemx} #{items} #{item[0]}"),
		Foreach{Collection: "list", Item: "item"},
	)
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"list": []int{1}})
	_, err = loop.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		"#{__frch_item_0.sku} #{__frch_item_0, mode=IN} #{__frch_item_0} #{itemx} #{items} #{item[0]}",
		ctx.SQL())
}

func TestRewriteRoot(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"item", "__frch_item_3"},
		{" item", "__frch_item_3"},
		{"item.name", "__frch_item_3.name"},
		{"item, jdbcType=VARCHAR", "__frch_item_3, jdbcType=VARCHAR"},
		{"item:VARCHAR", "__frch_item_3:VARCHAR"},
		{"item name", "__frch_item_3 name"},
		{"items", "items"},
		{"itemx", "itemx"},
		{"item[0]", "item[0]"},
		{"other.item", "other.item"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rewriteRoot(tt.content, "item", 3), tt.content)
	}
}

func TestNewForeachNode_BadCollection(t *testing.T) {
	_, err := NewForeachNode(NewTextNode("#{item}"), Foreach{Collection: ""})
	require.Error(t, err)
}
