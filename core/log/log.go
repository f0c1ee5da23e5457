// Package log defines the logging contract shared by the host, its
// collaborators and every component.
//
// Overview:
//   - Responsibility: Stable structured logging interface with hierarchical children
//   - Key Types: Logger interface, key-value helpers
//   - Concurrency Model: Logger implementations must be safe for concurrent use
//   - Error Semantics: Error accepts the error as its first parameter
//
// Usage:
//
//	logger := logx.New(logx.WithDebug(true))
//	db := logger.Child("db")
//	db.Trace("dialing", log.Str("addr", "localhost:5432"))
package log

import "time"

// Separator joins the names of nested child loggers.
const Separator = ":"

// Logger defines a leveled, hierarchical structured logger.
type Logger interface {
	// With returns a Logger that attaches the given key-value pairs to every entry.
	With(kv ...any) Logger

	// Child returns a Logger namespaced below this one. Names of nested
	// children are joined with Separator.
	Child(name string) Logger

	// Trace logs below debug level; used for per-event diagnostics.
	Trace(msg string, kv ...any)

	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)

	// Error logs an error message with the error as its first parameter.
	Error(err error, msg string, kv ...any)
}

// Str creates a string key-value pair.
func Str(k, v string) any {
	return []any{k, v}
}

// Int creates an integer key-value pair.
func Int(k string, v int) any {
	return []any{k, v}
}

// Bool creates a boolean key-value pair.
func Bool(k string, v bool) any {
	return []any{k, v}
}

// Dur creates a duration key-value pair.
func Dur(k string, v time.Duration) any {
	return []any{k, v}
}

// Any creates a key-value pair holding an arbitrary value.
func Any(k string, v any) any {
	return []any{k, v}
}

// JoinName returns the child name of parent, honoring an empty parent.
func JoinName(parent, name string) string {
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	default:
		return parent + Separator + name
	}
}
