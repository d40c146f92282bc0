package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/chainkit/chain"
	"github.com/kbukum/chainkit/errors"
)

func TestParseDefinition(t *testing.T) {
	yml := `
name: squares
stages:
  - square
  - name: sum
    flushable: true
  - [inc, double]
`
	def, err := ParseDefinition([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "squares", def.Name)
	require.Len(t, def.Stages, 3)
	assert.Equal(t, "square", def.Stages[0].Name)
	assert.False(t, def.Stages[0].Flushable)
	assert.Equal(t, "sum", def.Stages[1].Name)
	assert.True(t, def.Stages[1].Flushable)
	assert.True(t, def.Stages[2].IsList())
	require.Len(t, def.Stages[2].List, 2)
	assert.Equal(t, "double", def.Stages[2].List[1].Name)
}

func TestParseDefinition_ListMapping(t *testing.T) {
	yml := `
name: eager
stages:
  - list: [inc, sum]
    flushable: true
`
	def, err := ParseDefinition([]byte(yml))
	require.NoError(t, err)
	require.Len(t, def.Stages, 1)
	assert.True(t, def.Stages[0].IsList())
	assert.True(t, def.Stages[0].Flushable)
}

func TestParseDefinition_Invalid(t *testing.T) {
	_, err := ParseDefinition([]byte("stages: {not: [valid"))
	assert.Error(t, err)
}

func TestParseCatalog(t *testing.T) {
	yml := `
pipelines:
  squares:
    stages: [square, sum]
  evens:
    name: only-odd
    stages: [drop-even, double]
`
	c, err := ParseCatalog([]byte(yml))
	require.NoError(t, err)
	require.Len(t, c.Pipelines, 2)
	assert.Equal(t, "squares", c.Pipelines["squares"].Name)
	assert.Equal(t, "only-odd", c.Pipelines["evens"].Name)
	assert.Len(t, c.Pipelines["evens"].Stages, 2)
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nstages: [inc]\n"), 0o600))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "file", def.Name)

	_, err = LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", chain.Func(func(_ context.Context, v any) (any, error) { return v, nil }))
	r.Register("a", func(v any) any { return v })

	_, ok := r.Get("a")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Panics(t, func() { r.MustGet("missing") })
}

func TestRegistry_FactoryIsFresh(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.RegisterFactory("counter", func() any {
		calls++
		return func(v any) any { return v }
	})
	r.MustGet("counter")
	r.MustGet("counter")
	assert.Equal(t, 2, calls)
}

func run(t *testing.T, a *chain.ArrayPipe, inputs ...any) []any {
	t.Helper()
	var out []any
	for _, v := range inputs {
		got, err := a.Run(context.Background(), v)
		require.NoError(t, err)
		out = append(out, got...)
	}
	return out
}

func TestBuild(t *testing.T) {
	def, err := ParseDefinition([]byte("name: sq\nstages: [square, inc]\n"))
	require.NoError(t, err)

	descs, err := Build(Builtins(), def)
	require.NoError(t, err)
	a, err := chain.AsArray(descs...)
	require.NoError(t, err)

	assert.Equal(t, []any{2, 5, 10}, run(t, a, 1, 2, 3))
	stages := a.Pipe().Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, "square", stages[0].Name())
	assert.Equal(t, "inc", stages[1].Name())
}

func TestBuild_UnknownStage(t *testing.T) {
	def := &Definition{Name: "bad", Stages: []StageRef{{Name: "inc"}, {Name: "nope"}}}
	_, err := Build(Builtins(), def)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUsage))
	assert.Contains(t, err.Error(), `stage 1: "nope" not in registry`)
}

func TestBuild_EmptyName(t *testing.T) {
	_, err := Build(Builtins(), &Definition{Stages: []StageRef{{}}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUsage))
}

func TestBuild_NilDefinition(t *testing.T) {
	_, err := Build(Builtins(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUsage))
}

func TestBuildPipe_FlushableSum(t *testing.T) {
	def, err := ParseDefinition([]byte("name: total\nstages: [square, sum]\n"))
	require.NoError(t, err)

	var out []any
	p, err := BuildPipe(Builtins(), def, func(_ context.Context, v any) error {
		out = append(out, v)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "total", p.Name())
	assert.True(t, p.IsFlushable())

	ctx := context.Background()
	for _, v := range []any{1, 2, 3} {
		require.NoError(t, p.Process(ctx, v))
	}
	assert.Empty(t, out)
	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, []any{14}, out)
}

func TestBuildPipe_FlushableList(t *testing.T) {
	reg := Builtins()
	reg.RegisterFactory("count", func() any {
		n := 0
		return chain.Func(func(_ context.Context, v any) (any, error) {
			if chain.IsNone(v) {
				return n, nil
			}
			n++
			return chain.None, nil
		})
	})
	def, err := ParseDefinition([]byte("name: c\nstages:\n  - list: [count, double]\n    flushable: true\n  - inc\n"))
	require.NoError(t, err)

	var out []any
	p, err := BuildPipe(reg, def, func(_ context.Context, v any) error {
		out = append(out, v)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, p.IsFlushable())

	ctx := context.Background()
	for _, v := range []any{"a", "b", "c"} {
		require.NoError(t, p.Process(ctx, v))
	}
	assert.Empty(t, out)
	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, []any{7}, out)
}

func TestBuildPipe_SeparateState(t *testing.T) {
	def := &Definition{Name: "s", Stages: []StageRef{{Name: "sum"}}}
	reg := Builtins()
	a1, err := BuildStage(reg, def)
	require.NoError(t, err)
	a2, err := BuildStage(reg, def)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a1.Call(ctx, 5)
	require.NoError(t, err)
	got, err := a2.Call(ctx, chain.None)
	require.NoError(t, err)
	assert.True(t, chain.IsNone(got), "second build must not share the first one's total")
}

func TestBuild_EagerList(t *testing.T) {
	def, err := ParseDefinition([]byte("name: l\nstages:\n  - [inc, double]\n  - negate\n"))
	require.NoError(t, err)
	descs, err := Build(Builtins(), def)
	require.NoError(t, err)
	a, err := chain.AsArray(descs...)
	require.NoError(t, err)

	stages := a.Pipe().Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, chain.KindList, stages[0].Kind())
	assert.Equal(t, []any{-4, -6}, run(t, a, 1, 2))
}

func TestBuiltins(t *testing.T) {
	reg := Builtins()
	assert.Equal(t, []string{"double", "drop-even", "explode", "first", "inc", "negate", "square", "sum"}, reg.Names())

	cases := []struct {
		stages []string
		inputs []any
		want   []any
	}{
		{[]string{"square"}, []any{3, 1.5}, []any{9, 2.25}},
		{[]string{"negate", "double"}, []any{4}, []any{-8}},
		{[]string{"drop-even"}, []any{1, 2, 3, 4.0, 5.5}, []any{1, 3, 5.5}},
		{[]string{"explode"}, []any{3, 0, 2.0}, []any{1, 2, 3, 1.0, 2.0}},
		{[]string{"first", "double"}, []any{7}, []any{7}},
	}
	for _, tc := range cases {
		refs := make([]StageRef, len(tc.stages))
		for i, n := range tc.stages {
			refs[i] = StageRef{Name: n}
		}
		descs, err := Build(reg, &Definition{Name: "t", Stages: refs})
		require.NoError(t, err)
		a, err := chain.AsArray(descs...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, run(t, a, tc.inputs...), "stages %v", tc.stages)
	}
}

func TestBuiltins_SumPromotesToFloat(t *testing.T) {
	descs, err := Build(Builtins(), &Definition{Stages: []StageRef{{Name: "sum"}}})
	require.NoError(t, err)
	a, err := chain.AsArray(descs...)
	require.NoError(t, err)

	assert.Empty(t, run(t, a, 1, 2.5))
	got, err := a.Run(context.Background(), chain.None)
	require.NoError(t, err)
	assert.Equal(t, []any{3.5}, got)
}

func TestBuiltins_NonNumber(t *testing.T) {
	descs, err := Build(Builtins(), &Definition{Stages: []StageRef{{Name: "square"}}})
	require.NoError(t, err)
	a, err := chain.AsArray(descs...)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStageFailed))
}

func TestCatalogGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	yml := "pipelines:\n  a:\n    stages: [inc]\n  b:\n    stages: [double]\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	def, err := c.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", def.Name)

	_, err = c.Get("zzz")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, []string{"a", "b"}, appErr.Details["available"])
}
