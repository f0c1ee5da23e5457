// Package logx provides the default structured logger of the host, built on slog.
//
// Overview:
//   - Responsibility: Leveled logfmt/JSON output with hierarchical child loggers
//   - Key Types: Logger implementing core/log.Logger, Option for configuration
//   - Concurrency Model: All loggers are safe for concurrent use
//   - Error Semantics: No errors returned; write failures are dropped
//
// Usage:
//
//	logger := logx.New(logx.WithDebug(env != "production"))
//	logger.Child("app").Child("event").Trace("emitted", log.Str("path", "app:boot"))
package logx

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/PaulAvery/app/core/log"
	"github.com/PaulAvery/app/logx/internal"
)

// Format specifies the output format for logs.
type Format string

const (
	// FormatLogfmt outputs logs in logfmt format (key=value pairs).
	FormatLogfmt Format = "logfmt"
	// FormatJSON outputs one JSON object per line.
	FormatJSON Format = "json"
)

// LevelTrace is the level used by Logger.Trace.
const LevelTrace = internal.LevelTrace

// nameKey is the attribute carrying the hierarchical logger name.
const nameKey = "logger"

// Options configures the logger behavior.
type Options struct {
	Format           Format     // Output format: logfmt or json
	Level            slog.Level // Minimum log level
	Color            bool       // Enable colorization for level field only
	Writer           io.Writer  // Output writer (default: os.Stderr)
	PayloadMaxBytes  int        // Maximum bytes to log for string values (0 = unlimited)
	SensitiveFields  []string   // Field names to mask (e.g., "password", "token")
	DisableTimestamp bool       // Disable timestamp in output
}

// Logger implements core/log.Logger.
type Logger struct {
	handler *internal.Handler
	name    string
	attrs   []slog.Attr
}

// Option configures logger behavior.
type Option func(*Options)

// New creates a new Logger with the given options.
func New(opts ...Option) log.Logger {
	options := Options{
		Format: FormatLogfmt,
		Level:  slog.LevelInfo,
		Writer: os.Stderr,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Writer == nil {
		options.Writer = os.Stderr
	}

	handler := internal.NewHandler(internal.Options{
		Format:           string(options.Format),
		Level:            options.Level,
		Color:            options.Color,
		PayloadMaxBytes:  options.PayloadMaxBytes,
		SensitiveFields:  options.SensitiveFields,
		DisableTimestamp: options.DisableTimestamp,
	}, options.Writer)

	return &Logger{handler: handler}
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) {
		o.Level = level
	}
}

// WithDebug lowers the minimum level to trace when enabled and keeps info
// otherwise.
func WithDebug(enabled bool) Option {
	return func(o *Options) {
		if enabled {
			o.Level = LevelTrace
		} else {
			o.Level = slog.LevelInfo
		}
	}
}

// WithColor enables colorization for the level field only.
func WithColor(enabled bool) Option {
	return func(o *Options) {
		o.Color = enabled
	}
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.Writer = w
	}
}

// WithPayloadLimit sets the maximum bytes to log for string values.
func WithPayloadLimit(maxBytes int) Option {
	return func(o *Options) {
		o.PayloadMaxBytes = maxBytes
	}
}

// WithSensitiveFields sets field names to mask in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(o *Options) {
		o.SensitiveFields = fields
	}
}

// WithoutTimestamp drops the time field, e.g. when a supervisor adds its own.
func WithoutTimestamp() Option {
	return func(o *Options) {
		o.DisableTimestamp = true
	}
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield info and false.
func ParseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// With returns a new Logger with the given key-value pairs attached.
func (l *Logger) With(kv ...any) log.Logger {
	newAttrs := append([]slog.Attr{}, l.attrs...)
	newAttrs = append(newAttrs, internal.KVToAttrs(kv)...)

	return &Logger{
		handler: l.handler,
		name:    l.name,
		attrs:   newAttrs,
	}
}

// Child returns a Logger whose name is this logger's name joined with name.
func (l *Logger) Child(name string) log.Logger {
	return &Logger{
		handler: l.handler,
		name:    log.JoinName(l.name, name),
		attrs:   l.attrs,
	}
}

// Name returns the hierarchical name of the logger.
func (l *Logger) Name() string {
	return l.name
}

// Trace logs a trace message.
func (l *Logger) Trace(msg string, kv ...any) {
	l.log(LevelTrace, msg, internal.KVToAttrs(kv))
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kv ...any) {
	l.log(slog.LevelDebug, msg, internal.KVToAttrs(kv))
}

// Info logs an informational message.
func (l *Logger) Info(msg string, kv ...any) {
	l.log(slog.LevelInfo, msg, internal.KVToAttrs(kv))
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, kv ...any) {
	l.log(slog.LevelWarn, msg, internal.KVToAttrs(kv))
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string, kv ...any) {
	attrs := internal.KVToAttrs(kv)
	if err != nil {
		attrs = append([]slog.Attr{slog.Any("error", err)}, attrs...)
	}
	l.log(slog.LevelError, msg, attrs)
}

func (l *Logger) log(level slog.Level, msg string, attrs []slog.Attr) {
	all := make([]slog.Attr, 0, len(l.attrs)+len(attrs)+1)
	if l.name != "" {
		all = append(all, slog.String(nameKey, l.name))
	}
	all = append(all, l.attrs...)
	all = append(all, attrs...)

	l.handler.LogRecord(level, msg, all)
}

// Slog exposes the logger as a *slog.Logger for libraries that expect one.
func Slog(l log.Logger) *slog.Logger {
	if lx, ok := l.(*Logger); ok {
		h := lx.handler.WithAttrs(lx.attrs)
		if lx.name != "" {
			h = h.WithAttrs([]slog.Attr{slog.String(nameKey, lx.name)})
		}
		return slog.New(h)
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
