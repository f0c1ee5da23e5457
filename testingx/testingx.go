// Package testingx provides testing utilities for the lifecycle host.
//
// Overview:
//   - Responsibility: Test doubles for the capabilities the host injects
//   - Key Types: MockLogger, Terminator, Buffer
//   - Concurrency Model: All doubles are safe for concurrent use
//   - Error Semantics: Test failures via testing.T
//
// Usage:
//
//	logger := testingx.NewMockLogger(t)
//	term := testingx.NewTerminator()
//	a, err := app.New("svc", app.WithLogger(logger), app.WithTerminator(term.Terminate))
//	code, ok := term.Wait(time.Second)
package testingx

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/PaulAvery/app/core/errors"
	"github.com/PaulAvery/app/core/log"
)

// MockLogger records every entry in memory. Children and With-derived loggers
// share the parent's record.
type MockLogger struct {
	t      *testing.T
	name   string
	fields []any
	store  *entryStore
}

type entryStore struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry represents a single log entry.
type LogEntry struct {
	Logger  string
	Level   string
	Message string
	Fields  []any
	Error   error
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t *testing.T) *MockLogger {
	return &MockLogger{
		t:     t,
		store: &entryStore{entries: make([]LogEntry, 0)},
	}
}

// With returns a logger that adds the given fields to each entry.
func (m *MockLogger) With(kv ...any) log.Logger {
	fields := append(append([]any{}, m.fields...), kv...)
	return &MockLogger{t: m.t, name: m.name, fields: fields, store: m.store}
}

// Child returns a logger named after this one joined with name.
func (m *MockLogger) Child(name string) log.Logger {
	return &MockLogger{t: m.t, name: log.JoinName(m.name, name), fields: m.fields, store: m.store}
}

// Trace logs a trace message.
func (m *MockLogger) Trace(msg string, kv ...any) {
	m.log("TRACE", msg, nil, kv)
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, kv ...any) {
	m.log("DEBUG", msg, nil, kv)
}

// Info logs an info message.
func (m *MockLogger) Info(msg string, kv ...any) {
	m.log("INFO", msg, nil, kv)
}

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, kv ...any) {
	m.log("WARN", msg, nil, kv)
}

// Error logs an error message.
func (m *MockLogger) Error(err error, msg string, kv ...any) {
	m.log("ERROR", msg, err, kv)
}

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = append(m.store.entries, LogEntry{
		Logger:  m.name,
		Level:   level,
		Message: msg,
		Fields:  append(append([]any{}, m.fields...), kv...),
		Error:   err,
	})
}

// Entries returns all log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	entries := make([]LogEntry, len(m.store.entries))
	copy(entries, m.store.entries)
	return entries
}

// EntriesOf returns the entries written by the logger with the given name.
func (m *MockLogger) EntriesOf(name string) []LogEntry {
	var out []LogEntry
	for _, entry := range m.Entries() {
		if entry.Logger == name {
			out = append(out, entry)
		}
	}
	return out
}

// AssertLogged asserts that a message was logged.
func (m *MockLogger) AssertLogged(level, msg string) {
	m.t.Helper()
	for _, entry := range m.Entries() {
		if entry.Level == level && entry.Message == msg {
			return
		}
	}
	m.t.Errorf("Expected log message not found: level=%s msg=%q", level, msg)
}

// Clear clears all log entries.
func (m *MockLogger) Clear() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = nil
}

// Terminator records termination requests in place of os.Exit.
type Terminator struct {
	mu    sync.Mutex
	codes []int
	at    []time.Time
	ch    chan int
}

// NewTerminator creates a Terminator.
func NewTerminator() *Terminator {
	return &Terminator{ch: make(chan int, 16)}
}

// Terminate records code. It matches the func(int) capability the host expects.
func (r *Terminator) Terminate(code int) {
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.at = append(r.at, time.Now())
	r.mu.Unlock()

	select {
	case r.ch <- code:
	default:
	}
}

// Codes returns every recorded exit code in call order.
func (r *Terminator) Codes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

// FirstAt returns the time of the first termination, if any.
func (r *Terminator) FirstAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.at) == 0 {
		return time.Time{}, false
	}
	return r.at[0], true
}

// Wait blocks until a termination is recorded or timeout elapses.
func (r *Terminator) Wait(timeout time.Duration) (int, bool) {
	select {
	case code := <-r.ch:
		return code, true
	case <-time.After(timeout):
		return 0, false
	}
}

// Buffer is a bytes.Buffer safe for concurrent writers, suitable as an
// injected stderr.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the accumulated output.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// AssertError asserts that an error has the expected code.
func AssertError(t *testing.T, err error, expectedCode errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", expectedCode)
	}

	code := errors.CodeOf(err)
	if code != expectedCode {
		t.Errorf("Expected error code %s, got %s", expectedCode, code)
	}
}

// AssertNoError asserts that no error occurred.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}
