package dynamic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEval(t *testing.T, src string, ctx *Context) any {
	t.Helper()
	expr, err := ParseExpr(src)
	require.NoError(t, err)
	value, err := expr.Eval(ctx)
	require.NoError(t, err)
	return value
}

func TestExpr_Bool(t *testing.T) {
	type user struct {
		Name    string
		Qty     int
		Active  bool
		Tags    []string
		Manager *user
	}
	param := user{Name: "ada", Qty: 3, Active: true, Tags: []string{"a"}}

	tests := []struct {
		expr string
		want bool
	}{
		{"name != null", true},
		{"name == 'ada'", true},
		{"name == 'tob'", false},
		{"name", true},
		{"missing", false},
		{"qty > 2", true},
		{"qty >= 3", true},
		{"qty gte 3", true},
		{"qty lt 3", false},
		{"active", true},
		{"!active", false},
		{"not active", false},
		{"tags", true},
		{"manager == null", true},
		{"manager != null", false},
		{"qty == 3 && name == 'ada'", true},
		{"qty == 4 || name == 'ada'", true},
		{"qty == 4 or name == 'ada'", true},
		{"qty == 3 and name == 'tob'", false},
		{"(qty == 4 || qty == 3) && active", true},
		{"qty - 1 == 2", true},
		{"qty + 1 gt 3", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			expr, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			got, err := expr.Bool(NewContext(param))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpr_Truthiness(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		param any
		want  bool
	}{
		{"empty string", "s", map[string]any{"s": ""}, false},
		{"blank string", "s", map[string]any{"s": " "}, true},
		{"zero int", "n", map[string]any{"n": 0}, false},
		{"zero float", "f", map[string]any{"f": 0.0}, false},
		{"negative int", "n", map[string]any{"n": -1}, true},
		{"empty slice", "list", map[string]any{"list": []int{}}, false},
		{"non-empty slice", "list", map[string]any{"list": []int{1}}, true},
		{"empty map", "m", map[string]any{"m": map[string]int{}}, false},
		{"nil value", "x", map[string]any{"x": nil}, false},
		{"struct value", "ts", map[string]any{"ts": time.Time{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			got, err := expr.Bool(NewContext(tt.param))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpr_EvalValues(t *testing.T) {
	ctx := NewContext(map[string]any{"name": "ada", "qty": int64(3)})

	tests := []struct {
		expr string
		want any
	}{
		{"name", "ada"},
		{"'lit'", "lit"},
		{"42", 42.0},
		{"4.5", 4.5},
		{"-3", -3.0},
		{"true", true},
		{"null", nil},
		{"'%' + name + '%'", "%ada%"},
		{"qty + 2", 5.0},
		{"name + qty", "ada3"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, tt.expr, ctx))
		})
	}
}

func TestExpr_PathHops(t *testing.T) {
	type role struct{ Name string }
	type user struct {
		Roles []role
		Attrs map[string]any
	}
	param := user{
		Roles: []role{{Name: "admin"}, {Name: "dev"}},
		Attrs: map[string]any{"team": "core"},
	}
	ctx := NewContext(param)

	assert.Equal(t, "dev", mustEval(t, "roles[1].name", ctx))
	assert.Equal(t, "core", mustEval(t, "attrs.team", ctx))

	expr, err := ParseExpr("roles[0].name == 'admin'")
	require.NoError(t, err)
	ok, err := expr.Bool(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpr_BindingsShadowParam(t *testing.T) {
	ctx := NewContext(map[string]any{"name": "from param"})
	ctx.Bind("name", "bound")
	assert.Equal(t, "bound", mustEval(t, "name", ctx))

	ctx.Bind("item", map[string]any{"id": 7})
	assert.Equal(t, 7, mustEval(t, "item.id", ctx))
}

func TestExpr_TimeComparison(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	ctx := NewContext(map[string]any{"start": earlier, "end": later})

	for expr, want := range map[string]bool{
		"start < end":  true,
		"start == end": false,
		"end <= end":   true,
		"end > start":  true,
	} {
		parsed, err := ParseExpr(expr)
		require.NoError(t, err)
		got, err := parsed.Bool(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, expr)
	}
}

func TestExpr_Len(t *testing.T) {
	ctx := NewContext(map[string]any{
		"tags": []string{"a", "b"},
		"none": []string{},
		"name": "ada",
		"meta": map[string]any{"team": "core"},
	})

	assert.Equal(t, 2, mustEval(t, "len(tags)", ctx))
	assert.Equal(t, 3, mustEval(t, "len(name)", ctx))
	assert.Equal(t, 1, mustEval(t, "len(meta)", ctx))
	assert.Equal(t, 0, mustEval(t, "len(missing)", ctx))

	for expr, want := range map[string]bool{
		"len(tags) > 0":     true,
		"len(none) > 0":     false,
		"len(tags) == 2":    true,
		"len(tags)":         true,
		"len(missing) == 0": true,
	} {
		parsed, err := ParseExpr(expr)
		require.NoError(t, err)
		got, err := parsed.Bool(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, expr)
	}

	// A property that happens to be called len still resolves as a path.
	shadow := NewContext(map[string]any{"len": 5})
	assert.Equal(t, 5, mustEval(t, "len", shadow))
	assert.Equal(t, true, mustEval(t, "len > 4", shadow))
}

func TestParseExpr_Errors(t *testing.T) {
	_, err := ParseExpr("qty >")
	require.Error(t, err)

	var xerr *ExprError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "qty >", xerr.Expression)

	_, err = ParseExpr("((a)")
	require.Error(t, err)
}

func TestExpr_EvalErrors(t *testing.T) {
	expr, err := ParseExpr("a < b")
	require.NoError(t, err)

	_, err = expr.Eval(NewContext(map[string]any{"a": "x", "b": 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot compare")

	expr, err = ParseExpr("a + b")
	require.NoError(t, err)
	_, err = expr.Eval(NewContext(map[string]any{"a": true, "b": 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot apply")

	expr, err = ParseExpr("len(flag)")
	require.NoError(t, err)
	_, err = expr.Eval(NewContext(map[string]any{"flag": true}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot take len")
}

func TestParseExpr_CachesParsedExpressions(t *testing.T) {
	first, err := cachedExpr("qty > 1")
	require.NoError(t, err)
	second, err := cachedExpr("qty > 1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
