package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulAvery/app/busx"
	"github.com/PaulAvery/app/configx"
	coreerrors "github.com/PaulAvery/app/core/errors"
	"github.com/PaulAvery/app/testingx"
)

type staticSource map[string]any

func (s staticSource) Name() string { return "static" }

func (s staticSource) Load(context.Context) (map[string]any, error) {
	return configx.MergeDeep(map[string]any{}, s), nil
}

type harness struct {
	app    *App
	term   *testingx.Terminator
	logger *testingx.MockLogger
	stderr *testingx.Buffer
}

func newHarness(t *testing.T, values map[string]any, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		term:   testingx.NewTerminator(),
		logger: testingx.NewMockLogger(t),
		stderr: &testingx.Buffer{},
	}
	store := configx.NewStore(
		configx.WithLogger(h.logger),
		configx.WithSources(func(string) []configx.Source {
			return []configx.Source{staticSource(values)}
		}),
	)

	base := []Option{
		WithSignals(false),
		WithLogger(h.logger),
		WithConfigLoader(store),
		WithTerminator(h.term.Terminate),
		WithStderr(h.stderr),
	}
	a, err := New("test", append(base, opts...)...)
	require.NoError(t, err)
	h.app = a
	return h
}

func returning(v any) InitFunc {
	return func(context.Context, *Scope, configx.Config) (any, error) {
		return v, nil
	}
}

func TestNew(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		_, err := New("  ")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		_, err := New("test", WithShutdownTimeout(0), WithConfigLoader(configx.NewStore(
			configx.WithSources(func(string) []configx.Source { return nil }),
		)))
		testingx.AssertError(t, err, coreerrors.CodeInvalidArgument)
	})

	t.Run("env from config", func(t *testing.T) {
		h := newHarness(t, map[string]any{"env": "production"})
		assert.Equal(t, "production", h.app.Env())
		assert.Equal(t, "test", h.app.Name())
		assert.Equal(t, StateIdle, h.app.State())
	})

	t.Run("default env", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.Equal(t, configx.DefaultEnv, h.app.Env())
	})
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.app.Register(Component{Name: "db", Init: returning(1)}))

	cases := []struct {
		name string
		comp Component
		want error
		code coreerrors.Code
	}{
		{"empty", Component{Name: "", Init: returning(1)}, ErrInvalidName, coreerrors.CodeInvalidArgument},
		{"separator", Component{Name: "a:b", Init: returning(1)}, ErrInvalidName, coreerrors.CodeInvalidArgument},
		{"wildcard", Component{Name: "a*", Init: returning(1)}, ErrInvalidName, coreerrors.CodeInvalidArgument},
		{"no init", Component{Name: "cache"}, ErrInvalidName, coreerrors.CodeInvalidArgument},
		{"reserved", Component{Name: "app", Init: returning(1)}, ErrReservedName, coreerrors.CodeInvalidArgument},
		{"reserved case", Component{Name: "Shutdown", Init: returning(1)}, ErrReservedName, coreerrors.CodeInvalidArgument},
		{"duplicate", Component{Name: "db", Init: returning(2)}, ErrDuplicateName, coreerrors.CodeAlreadyExists},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.app.Register(tc.comp)
			assert.ErrorIs(t, err, tc.want)
			testingx.AssertError(t, err, tc.code)
		})
	}

	assert.Equal(t, []string{"db"}, h.app.Components())
}

func TestMustRegisterPanics(t *testing.T) {
	h := newHarness(t, nil)
	h.app.MustRegister(Component{Name: "db", Init: returning(1)})
	assert.Panics(t, func() {
		h.app.MustRegister(Component{Name: "db", Init: returning(1)})
	})
}

func TestRegisterAfterBoot(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.app.Boot(context.Background()))

	err := h.app.Register(Component{Name: "late", Init: returning(1)})
	assert.ErrorIs(t, err, ErrAlreadyBooted)
	testingx.AssertError(t, err, coreerrors.CodeFailedPrecondition)
}

func TestScopesSeeEveryPeer(t *testing.T) {
	h := newHarness(t, nil)

	var mu sync.Mutex
	seen := make(map[string][]string)
	record := func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
		mu.Lock()
		seen[s.Name()] = s.Components()
		mu.Unlock()
		return s.Name(), nil
	}
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, h.app.Register(Component{Name: name, Init: record}))
	}

	require.NoError(t, h.app.Boot(context.Background()))

	assert.Equal(t, []string{"b", "c"}, seen["a"])
	assert.Equal(t, []string{"a", "c"}, seen["b"])
	assert.Equal(t, []string{"a", "b"}, seen["c"])
}

func TestAwaitOrdering(t *testing.T) {
	h := newHarness(t, nil)

	var dbDone atomic.Int64
	h.app.MustRegister(Component{
		Name: "api",
		Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
			conn, err := AwaitAs[string](ctx, s, "db")
			if err != nil {
				return nil, err
			}
			assert.NotZero(t, dbDone.Load(), "db must resolve before api resumes")
			time.Sleep(time.Millisecond)
			return "api(" + conn + ")", nil
		},
	}).MustRegister(Component{
		Name: "db",
		Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
			time.Sleep(10 * time.Millisecond)
			dbDone.Store(time.Now().UnixNano())
			return "conn", nil
		},
	})

	start := time.Now()
	require.NoError(t, h.app.Boot(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 11*time.Millisecond)
	assert.Equal(t, StateBooted, h.app.State())
}

func TestAwaitErrors(t *testing.T) {
	h := newHarness(t, nil)

	results := make(chan error, 3)
	h.app.MustRegister(Component{Name: "db", Init: returning(42)})
	h.app.MustRegister(Component{
		Name: "api",
		Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
			_, err := s.Await(ctx, "api")
			results <- err
			_, err = s.Await(ctx, "missing")
			results <- err
			_, err = AwaitAs[string](ctx, s, "db")
			results <- err
			return nil, nil
		},
	})

	require.NoError(t, h.app.Boot(context.Background()))

	self := <-results
	assert.ErrorIs(t, self, ErrAwaitCycle)
	testingx.AssertError(t, self, coreerrors.CodeAborted)

	missing := <-results
	assert.ErrorIs(t, missing, ErrUnknownComponent)
	testingx.AssertError(t, missing, coreerrors.CodeNotFound)

	assert.ErrorContains(t, <-results, "resolved to int")
}

func TestAwaitCycleDetected(t *testing.T) {
	h := newHarness(t, nil, WithCycleDetection(true))

	await := func(peer string) InitFunc {
		return func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
			return s.Await(ctx, peer)
		}
	}
	h.app.MustRegister(Component{Name: "a", Init: await("b")})
	h.app.MustRegister(Component{Name: "b", Init: await("a")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := h.app.Boot(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitializer)
	assert.ErrorIs(t, err, ErrAwaitCycle)

	code, ok := h.term.Wait(time.Second)
	require.True(t, ok)
	assert.Equal(t, 1, code)
}

func TestAwaitFromSideGoroutine(t *testing.T) {
	sideAwait := func(t *testing.T, h *harness, detached bool) {
		t.Helper()

		side := make(chan error, 1)
		h.app.MustRegister(Component{
			Name: "a",
			Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
				if _, err := s.Await(ctx, "b"); err != nil {
					return nil, err
				}
				return "a", nil
			},
		})
		h.app.MustRegister(Component{
			Name: "b",
			Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
				waitCtx := ctx
				if detached {
					waitCtx = context.Background()
				}
				go func() {
					v, err := s.Await(waitCtx, "a")
					if err == nil && v != "a" {
						err = errors.New("unexpected value")
					}
					side <- err
				}()
				time.Sleep(30 * time.Millisecond)
				return "b", nil
			},
		})

		require.NoError(t, h.app.Boot(context.Background()))
		select {
		case err := <-side:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("side goroutine never resolved")
		}
		assert.Empty(t, h.term.Codes())
	}

	t.Run("detection on", func(t *testing.T) {
		sideAwait(t, newHarness(t, nil, WithCycleDetection(true)), true)
	})

	t.Run("detection off by default", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.Equal(t, configx.DefaultEnv, h.app.Env())
		assert.Nil(t, h.app.waits)
		sideAwait(t, h, false)
	})
}

func TestScopeCannotEmitLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	var boots, shutdowns atomic.Int32
	h.app.Bus().On(EventBoot, func(context.Context, busx.Event) error {
		boots.Add(1)
		return nil
	})
	h.app.Bus().On(EventShutdown, func(context.Context, busx.Event) error {
		shutdowns.Add(1)
		return nil
	})
	h.app.MustRegister(Component{
		Name: "x",
		Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
			require.NoError(t, s.Emit(ctx, EventBoot).Wait(ctx))
			require.NoError(t, s.Emit(ctx, EventShutdown).Wait(ctx))
			return nil, nil
		},
	})

	require.NoError(t, h.app.Boot(context.Background()))
	assert.Equal(t, int32(1), boots.Load())
	assert.Zero(t, shutdowns.Load())
	assert.Empty(t, h.term.Codes())
}

func TestBootOnce(t *testing.T) {
	h := newHarness(t, nil)

	var boots atomic.Int32
	h.app.Bus().On(EventBoot, func(context.Context, busx.Event) error {
		boots.Add(1)
		return nil
	})
	h.app.MustRegister(Component{Name: "db", Init: returning(1)})

	require.NoError(t, h.app.Boot(context.Background()))
	err := h.app.Boot(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyBooted)
	assert.Equal(t, int32(1), boots.Load())
}

func TestBootWithoutComponents(t *testing.T) {
	h := newHarness(t, nil)

	booted := make(chan struct{})
	h.app.Bus().On(EventBoot, func(context.Context, busx.Event) error {
		close(booted)
		return nil
	})

	require.NoError(t, h.app.Boot(context.Background()))
	select {
	case <-booted:
	default:
		t.Fatal("app:boot handlers must have run when Boot returns")
	}
}

func TestComponentConfig(t *testing.T) {
	h := newHarness(t, map[string]any{
		"db": map[string]any{"dsn": "postgres://db"},
	})

	got := make(chan configx.Config, 1)
	h.app.MustRegister(Component{
		Name:   "db",
		Config: map[string]any{"dsn": "sqlite://", "pool": 5},
		Init: func(_ context.Context, _ *Scope, cfg configx.Config) (any, error) {
			got <- cfg
			return nil, nil
		},
	})

	require.NoError(t, h.app.Boot(context.Background()))
	cfg := <-got
	assert.Equal(t, "postgres://db", cfg.String("dsn", ""))
	assert.Equal(t, 5, cfg["pool"])
}

func TestShutdown(t *testing.T) {
	t.Run("handlers settle", func(t *testing.T) {
		h := newHarness(t, nil, WithShutdownTimeout(time.Second))

		var closed atomic.Bool
		h.app.Bus().On(EventShutdown, func(context.Context, busx.Event) error {
			time.Sleep(10 * time.Millisecond)
			closed.Store(true)
			return nil
		})

		require.NoError(t, h.app.Boot(context.Background()))
		require.NoError(t, h.app.Shutdown())

		assert.True(t, closed.Load())
		assert.Equal(t, []int{0}, h.term.Codes())
		select {
		case <-h.app.Done():
		default:
			t.Fatal("Done must be closed after shutdown")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		h := newHarness(t, nil, WithShutdownTimeout(50*time.Millisecond))

		h.app.Bus().On(EventShutdown, func(ctx context.Context, _ busx.Event) error {
			<-ctx.Done()
			time.Sleep(time.Second)
			return nil
		})

		start := time.Now()
		err := h.app.Shutdown()
		elapsed := time.Since(start)

		assert.ErrorIs(t, err, ErrShutdownTimeout)
		testingx.AssertError(t, err, coreerrors.CodeDeadlineExceeded)
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
		assert.Less(t, elapsed, 500*time.Millisecond)
		assert.Equal(t, []int{0}, h.term.Codes())
	})

	t.Run("from a component", func(t *testing.T) {
		h := newHarness(t, nil)
		h.app.MustRegister(Component{
			Name: "worker",
			Init: func(_ context.Context, s *Scope, _ configx.Config) (any, error) {
				s.Shutdown()
				return nil, nil
			},
		})

		require.NoError(t, h.app.Boot(context.Background()))
		code, ok := h.term.Wait(time.Second)
		require.True(t, ok)
		assert.Equal(t, 0, code)
	})
}

func TestFatalPath(t *testing.T) {
	t.Run("initializer failure", func(t *testing.T) {
		h := newHarness(t, nil)

		var boots, shutdowns atomic.Int32
		h.app.Bus().On(EventBoot, func(context.Context, busx.Event) error {
			boots.Add(1)
			return nil
		})
		h.app.Bus().On(EventShutdown, func(context.Context, busx.Event) error {
			shutdowns.Add(1)
			return nil
		})
		boom := errors.New("boom")
		h.app.MustRegister(Component{
			Name: "db",
			Init: func(context.Context, *Scope, configx.Config) (any, error) { return nil, boom },
		})

		err := h.app.Boot(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInitializer)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, StateFailed, h.app.State())

		code, ok := h.term.Wait(time.Second)
		require.True(t, ok)
		assert.Equal(t, 1, code)

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, []int{1}, h.term.Codes())
		assert.Zero(t, boots.Load())
		assert.Zero(t, shutdowns.Load())
		assert.Contains(t, h.stderr.String(), "Exiting. Uncaught fatal error: ")
		assert.Contains(t, h.stderr.String(), "boom")
	})

	t.Run("initializer panic", func(t *testing.T) {
		h := newHarness(t, nil)
		h.app.MustRegister(Component{
			Name: "db",
			Init: func(context.Context, *Scope, configx.Config) (any, error) { panic("kaput") },
		})

		err := h.app.Boot(context.Background())
		assert.ErrorContains(t, err, "panic: kaput")

		code, ok := h.term.Wait(time.Second)
		require.True(t, ok)
		assert.Equal(t, 1, code)
	})

	t.Run("handler failure", func(t *testing.T) {
		h := newHarness(t, nil)

		var scope *Scope
		h.app.MustRegister(Component{
			Name: "api",
			Init: func(_ context.Context, s *Scope, _ configx.Config) (any, error) {
				scope = s
				s.On("api:request", func(context.Context, busx.Event) error {
					return errors.New("handler exploded")
				})
				return nil, nil
			},
		})
		require.NoError(t, h.app.Boot(context.Background()))

		scope.Emit(context.Background(), "request")

		code, ok := h.term.Wait(time.Second)
		require.True(t, ok)
		assert.Equal(t, 1, code)
		assert.Contains(t, h.stderr.String(), "handler exploded")
	})

	t.Run("failing fatal handler does not loop", func(t *testing.T) {
		h := newHarness(t, nil)

		var calls atomic.Int32
		h.app.Bus().On(EventFatal, func(context.Context, busx.Event) error {
			calls.Add(1)
			return errors.New("fatal handler failed")
		})

		h.app.Bus().Report(errors.New("first"))
		_, ok := h.term.Wait(time.Second)
		require.True(t, ok)

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, []int{1}, h.term.Codes())
	})
}

func TestFatalErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &FatalError{Err: cause}

	assert.Equal(t, "disk full", err.Error())
	assert.ErrorIs(t, err, ErrFatal)
	assert.ErrorIs(t, err, cause)
}

func TestScopeEvents(t *testing.T) {
	h := newHarness(t, nil)

	custom := make(chan busx.Event, 1)
	ready := make(chan busx.Event, 1)
	h.app.Bus().On("app:custom", func(_ context.Context, ev busx.Event) error {
		custom <- ev
		return nil
	})
	h.app.Bus().On("db:ready", func(_ context.Context, ev busx.Event) error {
		ready <- ev
		return nil
	})

	h.app.MustRegister(Component{
		Name: "db",
		Init: func(ctx context.Context, s *Scope, _ configx.Config) (any, error) {
			require.NoError(t, s.Emit(ctx, "ready", "pool").Wait(ctx))
			require.NoError(t, s.Emit(ctx, "app:custom", 7).Wait(ctx))
			return nil, nil
		},
	})
	require.NoError(t, h.app.Boot(context.Background()))

	ev := <-ready
	assert.Equal(t, "db:ready", ev.Name())
	assert.Equal(t, "pool", ev.Arg(0))

	ev = <-custom
	assert.Equal(t, "app:custom", ev.Name())
	assert.Equal(t, 7, ev.Arg(0))

	assert.Zero(t, h.term.Codes())
}

func TestEventTrace(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.app.Boot(context.Background()))

	require.Eventually(t, func() bool {
		for _, entry := range h.logger.EntriesOf("app:event") {
			if entry.Level == "TRACE" && len(entry.Fields) > 0 {
				if pair, ok := entry.Fields[0].([]any); ok && pair[1] == EventBoot {
					return true
				}
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestRun(t *testing.T) {
	h := newHarness(t, nil)

	stopped := make(chan struct{})
	h.app.MustRegister(Component{
		Name: "server",
		Init: func(_ context.Context, s *Scope, _ configx.Config) (any, error) {
			s.On(EventShutdown, func(context.Context, busx.Event) error {
				close(stopped)
				return nil
			})
			return nil, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.app.Run(ctx) }()

	require.Eventually(t, func() bool { return h.app.State() == StateBooted }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-stopped
	assert.Equal(t, []int{0}, h.term.Codes())
}

type recordingObserver struct {
	mu          sync.Mutex
	registered  []string
	initialized map[string]error
	booted      int
	shutdowns   []bool
}

func (r *recordingObserver) ComponentRegistered(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, name)
}

func (r *recordingObserver) ComponentInitialized(name string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized == nil {
		r.initialized = make(map[string]error)
	}
	r.initialized[name] = err
}

func (r *recordingObserver) BootCompleted(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.booted++
}

func (r *recordingObserver) ShutdownCompleted(_ time.Duration, timedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdowns = append(r.shutdowns, timedOut)
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	h := newHarness(t, nil, WithMetrics(obs))

	h.app.MustRegister(Component{Name: "db", Init: returning(1)})
	h.app.MustRegister(Component{Name: "api", Init: returning(2)})
	require.NoError(t, h.app.Boot(context.Background()))
	require.NoError(t, h.app.Shutdown())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{"db", "api"}, obs.registered)
	assert.Len(t, obs.initialized, 2)
	assert.NoError(t, obs.initialized["db"])
	assert.Equal(t, 1, obs.booted)
	assert.Equal(t, []bool{false}, obs.shutdowns)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "booted", StateBooted.String())
	assert.Equal(t, "state(9)", State(9).String())
}
