// Package internal provides internal implementation details for configx.
package internal

import (
	"context"
)

// Source describes one layer of configuration for an application.
// Implementations must be safe for concurrent use and honor context cancellation.
type Source interface {
	// Name identifies the source in logs and errors, e.g. the file path.
	Name() string

	// Load reads the current snapshot as a nested tree. A source with nothing
	// to contribute returns an empty map and no error.
	Load(ctx context.Context) (map[string]any, error)
}

// Layout tells BuildSources where one application's configuration lives.
type Layout struct {
	App        string            // Application name
	ConfigDir  string            // Per-user config directory (files under <ConfigDir>/<App>/)
	WorkDir    string            // Working directory (files named <App>.<ext>)
	DotenvFile string            // Path of the dotenv file; empty disables it
	Environ    func() []string   // Process environment (KEY=VALUE entries)
	Parsers    map[string]Parser // File parsers by extension
}

// Parser decodes the contents of a config file into a tree.
type Parser func(data []byte) (map[string]any, error)
