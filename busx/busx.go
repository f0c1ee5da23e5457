// Package busx provides the hierarchical event bus the lifecycle host is wired on.
//
// Overview:
//   - Responsibility: Path-addressed pub/sub with glob subscriptions and namespaced children
//   - Key Types: Bus, Event, Handler, Settle
//   - Concurrency Model: Handlers of one emit run concurrently; the bus is safe for concurrent use
//   - Error Semantics: Handler failures settle the emit with a joined error and reach every Catch hook
//
// Paths are segments joined by ":". In subscription patterns "*" matches
// exactly one segment and "**" matches any number of segments, including none.
//
// Usage:
//
//	bus := busx.New()
//	off := bus.On("app:*", func(ctx context.Context, ev busx.Event) error {
//		fmt.Println(ev.Name(), ev.Match)
//		return nil
//	})
//	defer off()
//	err := bus.Emit(ctx, "app:boot").Wait(ctx)
package busx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Separator joins path segments.
const Separator = ":"

// Wildcards understood in subscription patterns.
const (
	AnySegment  = "*"
	AnySegments = "**"
)

// Event is delivered to every handler whose pattern matches the emitted path.
type Event struct {
	Path  []string // Emitted path, split into segments
	Match []string // One entry per wildcard in the pattern; "**" captures are joined with Separator
	Args  []any    // Emit arguments
}

// Name returns the emitted path.
func (e Event) Name() string {
	return strings.Join(e.Path, Separator)
}

// Arg returns the i-th argument, or nil when absent.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Handler handles one event.
type Handler func(ctx context.Context, ev Event) error

// Observer is notified of bus activity, e.g. for metrics.
type Observer interface {
	EventEmitted(path string, handlers int)
	HandlerFailed(path string, err error)
}

// HandlerError is the error a failing or panicking handler is reported as.
type HandlerError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s: %v", e.Path, e.Err)
}

// Unwrap returns the handler's own error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Option configures a Bus.
type Option func(*dispatcher)

// WithObserver attaches an observer to the bus and all its children.
func WithObserver(o Observer) Option {
	return func(d *dispatcher) {
		d.observer = o
	}
}

type subscription struct {
	id      uint64
	pattern []string
	handler Handler
}

type catchHook struct {
	id uint64
	fn func(error)
}

// dispatcher is shared by a root bus and every child derived from it.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   uint64
	subs     []*subscription
	catches  []catchHook
	observer Observer
}

// Bus is a view on a dispatcher rooted at a namespace prefix.
type Bus struct {
	d      *dispatcher
	prefix []string
}

// New creates a root bus.
func New(opts ...Option) *Bus {
	d := &dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	return &Bus{d: d}
}

// Child returns a bus sharing this bus's dispatch whose emits and
// subscriptions are prefixed with namespace.
func (b *Bus) Child(namespace string) *Bus {
	return &Bus{d: b.d, prefix: b.resolve(namespace)}
}

// Root returns the unprefixed bus sharing this bus's dispatch.
func (b *Bus) Root() *Bus {
	return &Bus{d: b.d}
}

// Prefix returns the namespace of the bus, empty for a root bus.
func (b *Bus) Prefix() string {
	return strings.Join(b.prefix, Separator)
}

func (b *Bus) resolve(path string) []string {
	segments := slices.Clone(b.prefix)
	return append(segments, Split(path)...)
}

// On subscribes handler to pattern and returns a function removing it.
func (b *Bus) On(pattern string, handler Handler) (off func()) {
	b.d.mu.Lock()
	b.d.nextID++
	sub := &subscription{id: b.d.nextID, pattern: b.resolve(pattern), handler: handler}
	b.d.subs = append(b.d.subs, sub)
	b.d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.d.mu.Lock()
			defer b.d.mu.Unlock()
			b.d.subs = slices.DeleteFunc(b.d.subs, func(s *subscription) bool { return s.id == sub.id })
		})
	}
}

// Catch registers a hook receiving every handler failure and every
// reported error. It returns a function removing the hook.
func (b *Bus) Catch(fn func(error)) (off func()) {
	b.d.mu.Lock()
	b.d.nextID++
	id := b.d.nextID
	b.d.catches = append(b.d.catches, catchHook{id: id, fn: fn})
	b.d.mu.Unlock()

	return func() {
		b.d.mu.Lock()
		defer b.d.mu.Unlock()
		b.d.catches = slices.DeleteFunc(b.d.catches, func(h catchHook) bool { return h.id == id })
	}
}

// Report hands err to the Catch hooks as if a handler had failed.
func (b *Bus) Report(err error) {
	if err == nil {
		return
	}
	b.d.mu.RLock()
	hooks := slices.Clone(b.d.catches)
	b.d.mu.RUnlock()

	for _, h := range hooks {
		h.fn(err)
	}
}

// Handlers returns the number of subscriptions matching path.
func (b *Bus) Handlers(path string) int {
	segments := b.resolve(path)

	b.d.mu.RLock()
	defer b.d.mu.RUnlock()
	n := 0
	for _, sub := range b.d.subs {
		if _, ok := Match(sub.pattern, segments); ok {
			n++
		}
	}
	return n
}

type delivery struct {
	handler Handler
	match   []string
}

// Emit delivers an event to every matching subscription, each handler in its
// own goroutine, and returns immediately. The returned Settle completes when
// all handlers have returned.
func (b *Bus) Emit(ctx context.Context, path string, args ...any) *Settle {
	segments := b.resolve(path)
	name := strings.Join(segments, Separator)

	b.d.mu.RLock()
	var deliveries []delivery
	for _, sub := range b.d.subs {
		if m, ok := Match(sub.pattern, segments); ok {
			deliveries = append(deliveries, delivery{handler: sub.handler, match: m})
		}
	}
	observer := b.d.observer
	b.d.mu.RUnlock()

	if observer != nil {
		observer.EventEmitted(name, len(deliveries))
	}

	settle := &Settle{done: make(chan struct{}), handlers: len(deliveries)}
	if len(deliveries) == 0 {
		close(settle.done)
		return settle
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, dl := range deliveries {
		ev := Event{Path: slices.Clone(segments), Match: dl.match, Args: args}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := invoke(ctx, dl.handler, ev); err != nil {
				herr := &HandlerError{Path: name, Err: err}
				if observer != nil {
					observer.HandlerFailed(name, err)
				}
				mu.Lock()
				errs = append(errs, herr)
				mu.Unlock()
				b.Report(herr)
			}
		}()
	}

	go func() {
		wg.Wait()
		mu.Lock()
		settle.err = errors.Join(errs...)
		mu.Unlock()
		close(settle.done)
	}()

	return settle
}

func invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

// Settle tracks the handlers of one emit.
type Settle struct {
	done     chan struct{}
	err      error
	handlers int
}

// Done is closed once every handler has returned.
func (s *Settle) Done() <-chan struct{} {
	return s.done
}

// Err returns the joined handler errors. It is nil until Done is closed.
func (s *Settle) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Handlers returns how many handlers the emit was delivered to.
func (s *Settle) Handlers() int {
	return s.handlers
}

// Wait blocks until the handlers have settled or ctx is done.
func (s *Settle) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Split breaks a path into segments. Empty segments are dropped.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, Separator)
	return slices.DeleteFunc(parts, func(s string) bool { return s == "" })
}

// Join joins segments into a path.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Match reports whether pattern matches path and returns the wildcard
// captures. "**" matches greedily.
func Match(pattern, path []string) ([]string, bool) {
	return match(pattern, path, nil)
}

func match(pattern, path, captured []string) ([]string, bool) {
	if len(pattern) == 0 {
		return captured, len(path) == 0
	}

	switch pattern[0] {
	case AnySegments:
		for n := len(path); n >= 0; n-- {
			next := append(slices.Clip(captured), strings.Join(path[:n], Separator))
			if m, ok := match(pattern[1:], path[n:], next); ok {
				return m, true
			}
		}
		return nil, false
	case AnySegment:
		if len(path) == 0 {
			return nil, false
		}
		return match(pattern[1:], path[1:], append(slices.Clip(captured), path[0]))
	default:
		if len(path) == 0 || path[0] != pattern[0] {
			return nil, false
		}
		return match(pattern[1:], path[1:], captured)
	}
}
