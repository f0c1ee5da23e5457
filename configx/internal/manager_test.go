package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulAvery/app/testingx"
)

type staticSource struct {
	name string
	tree map[string]any
	err  error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Load(context.Context) (map[string]any, error) {
	return CopyTree(s.tree), s.err
}

func TestLoadSourcesPrecedence(t *testing.T) {
	logger := testingx.NewMockLogger(t)
	sources := []Source{
		staticSource{name: "low", tree: map[string]any{"db": map[string]any{"host": "a", "port": 1}}},
		staticSource{name: "empty", tree: map[string]any{}},
		staticSource{name: "high", tree: map[string]any{"db": map[string]any{"port": 2}}},
	}

	merged, err := LoadSources(context.Background(), logger, sources)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"db": map[string]any{"host": "a", "port": 2}}, merged)
	logger.AssertLogged("DEBUG", "config source loaded")
}

func TestLoadSourcesError(t *testing.T) {
	boom := errors.New("boom")
	sources := []Source{staticSource{name: "broken", err: boom}}

	_, err := LoadSources(context.Background(), testingx.NewMockLogger(t), sources)

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "broken")
}

func TestMergeDeepReplacesNonMaps(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"b": 1}, "list": []any{1}}
	src := map[string]any{"a": "scalar", "list": []any{2, 3}}

	MergeDeep(dst, src)

	assert.Equal(t, "scalar", dst["a"])
	assert.Equal(t, []any{2, 3}, dst["list"])
}

func TestMergeDeepNilDestination(t *testing.T) {
	got := MergeDeep(nil, map[string]any{"a": 1})
	assert.Equal(t, map[string]any{"a": 1}, got)
}

func TestMergeDeepCopiesSource(t *testing.T) {
	inner := map[string]any{"port": 1}
	dst := MergeDeep(map[string]any{}, map[string]any{"db": inner})

	inner["port"] = 99

	assert.Equal(t, 1, dst["db"].(map[string]any)["port"])
}

func TestCopyTree(t *testing.T) {
	src := map[string]any{"a": map[string]any{"b": []any{map[string]any{"c": 1}}}}

	cp := CopyTree(src)
	cp["a"].(map[string]any)["b"].([]any)[0].(map[string]any)["c"] = 2

	assert.Equal(t, 1, src["a"].(map[string]any)["b"].([]any)[0].(map[string]any)["c"])
}
