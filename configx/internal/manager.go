// Package internal provides internal implementation for the configx package.
package internal

import (
	"context"
	"fmt"

	"github.com/PaulAvery/app/core/log"
)

// LoadSources loads every source and deep-merges the results, later sources
// taking precedence over earlier ones.
func LoadSources(ctx context.Context, logger log.Logger, sources []Source) (map[string]any, error) {
	merged := make(map[string]any)

	for _, source := range sources {
		tree, err := source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("config source %s: %w", source.Name(), err)
		}
		if len(tree) == 0 {
			continue
		}

		logger.Debug("config source loaded", log.Str("source", source.Name()), log.Int("keys", len(tree)))
		MergeDeep(merged, tree)
	}

	return merged, nil
}

// MergeDeep merges src into dst recursively and returns dst. Nested maps are
// merged key by key; any other value in src replaces the one in dst.
// Values taken from src are deep-copied.
func MergeDeep(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}

	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = MergeDeep(dstMap, srcMap)
			continue
		}
		dst[k] = CopyValue(v)
	}

	return dst
}

// CopyTree returns a deep copy of m.
func CopyTree(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep-copies maps and slices and returns other values as is.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyTree(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CopyValue(item)
		}
		return out
	default:
		return v
	}
}
