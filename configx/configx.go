package configx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/PaulAvery/app/configx/internal"
	"github.com/PaulAvery/app/core/log"
	"github.com/PaulAvery/app/logx"
)

// DefaultEnv is returned by Config.Env when no env key is configured.
const DefaultEnv = "local"

// Loader produces the configuration of a named application.
type Loader interface {
	// Load returns the merged configuration of app. The defaults are merged
	// underneath configured values and remembered for later Loads.
	Load(ctx context.Context, app string, defaults map[string]any) (Config, error)
}

// Source is one layer of configuration.
type Source = internal.Source

// Config is a nested configuration tree.
type Config map[string]any

// Env returns the configured environment name, or DefaultEnv.
func (c Config) Env() string {
	if env, ok := c["env"].(string); ok && env != "" {
		return env
	}
	return DefaultEnv
}

// Section returns the nested tree stored under name, or an empty Config.
func (c Config) Section(name string) Config {
	if section, ok := c[name].(map[string]any); ok {
		return Config(section)
	}
	if section, ok := c[name].(Config); ok {
		return section
	}
	return Config{}
}

// String returns the value under key rendered as a string, or def when unset.
func (c Config) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bind decodes the tree into target through its yaml tags and validates the
// result with its validate tags.
func (c Config) Bind(target any) error {
	data, err := yaml.Marshal(map[string]any(c))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return ValidateStruct(defaultValidator, target)
}

// Clone returns a deep copy of the tree.
func (c Config) Clone() Config {
	return Config(internal.CopyTree(c))
}

// MergeDeep merges src into dst recursively, src winning on leaves, and returns dst.
func MergeDeep(dst, src map[string]any) map[string]any {
	return internal.MergeDeep(dst, src)
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger     log.Logger
	configDir  string
	workDir    string
	dotenvFile string
	environ    func() []string
	sources    func(app string) []Source
}

// WithLogger sets the logger used to report loaded sources.
func WithLogger(logger log.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithConfigDir overrides the per-user configuration directory.
func WithConfigDir(dir string) StoreOption {
	return func(o *storeOptions) {
		o.configDir = dir
	}
}

// WithWorkDir overrides the directory searched for <app>.<ext> files and .env.
func WithWorkDir(dir string) StoreOption {
	return func(o *storeOptions) {
		o.workDir = dir
	}
}

// WithDotenvFile sets the dotenv file path. An empty path disables it.
func WithDotenvFile(path string) StoreOption {
	return func(o *storeOptions) {
		o.dotenvFile = path
	}
}

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(environ func() []string) StoreOption {
	return func(o *storeOptions) {
		o.environ = environ
	}
}

// WithSources replaces the standard source layout entirely.
func WithSources(fn func(app string) []Source) StoreOption {
	return func(o *storeOptions) {
		o.sources = fn
	}
}

type appConfig struct {
	persisted map[string]any
	defaults  map[string]any
}

// Store is the default Loader. Sources of an application are read on its
// first Load; defaults accumulate across Loads.
type Store struct {
	opts storeOptions
	mu   sync.Mutex
	apps map[string]*appConfig
}

// NewStore creates a Store reading the standard locations.
func NewStore(opts ...StoreOption) *Store {
	o := storeOptions{
		workDir:    ".",
		dotenvFile: ".env",
		environ:    os.Environ,
	}
	if dir, err := os.UserConfigDir(); err == nil {
		o.configDir = dir
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logx.New()
	}

	return &Store{opts: o, apps: make(map[string]*appConfig)}
}

// Load implements Loader.
func (s *Store) Load(ctx context.Context, app string, defaults map[string]any) (Config, error) {
	if strings.TrimSpace(app) == "" {
		return nil, fmt.Errorf("application name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.apps[app]
	if !ok {
		persisted, err := internal.LoadSources(ctx, s.opts.logger.Child("config"), s.sourcesFor(app))
		if err != nil {
			return nil, fmt.Errorf("load config of %s: %w", app, err)
		}
		entry = &appConfig{persisted: persisted, defaults: make(map[string]any)}
		s.apps[app] = entry
	}

	internal.MergeDeep(entry.defaults, defaults)

	merged := internal.CopyTree(entry.defaults)
	internal.MergeDeep(merged, entry.persisted)
	return Config(merged), nil
}

func (s *Store) sourcesFor(app string) []Source {
	if s.opts.sources != nil {
		return s.opts.sources(app)
	}

	dotenv := s.opts.dotenvFile
	if dotenv != "" && !filepath.IsAbs(dotenv) {
		dotenv = filepath.Join(s.opts.workDir, dotenv)
	}

	return internal.BuildSources(internal.Layout{
		App:        app,
		ConfigDir:  s.opts.configDir,
		WorkDir:    s.opts.workDir,
		DotenvFile: dotenv,
		Environ:    s.opts.environ,
	})
}

// NewFileSource creates a source reading one json, yaml or toml file.
func NewFileSource(path string) Source {
	return internal.NewFileSource(path, internal.DefaultParsers())
}

// NewEnvSource creates a source reading prefixed environment variables.
// Keys are lower-cased and nested on "__".
func NewEnvSource(prefix string, environ func() []string) Source {
	return internal.NewEnvSource(prefix, environ)
}

// NewDotenvSource creates a source reading prefixed keys from a dotenv file.
func NewDotenvSource(path, prefix string) Source {
	return internal.NewDotenvSource(path, prefix)
}

// EnvPrefix returns the environment variable prefix used for app.
func EnvPrefix(app string) string {
	return internal.EnvPrefix(app)
}

// BindMap binds flat values to target using env and default struct tags.
func BindMap(snapshot map[string]string, target any) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}
	return internal.BindToStruct(snapshot, target)
}

// BindEnv binds the process environment to target using env and default
// struct tags, then validates it.
func BindEnv(target any) error {
	snapshot := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			snapshot[key] = value
		}
	}
	if err := BindMap(snapshot, target); err != nil {
		return err
	}
	return ValidateStruct(defaultValidator, target)
}
