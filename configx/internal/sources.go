// Package internal provides internal implementation details for configx.
//
// Overview:
//   - Responsibility: Implement the configuration sources (file, dotenv, environment)
//   - Key Types: FileSource, DotenvSource, EnvSource
//   - Concurrency Model: All sources are safe for concurrent use
//   - Error Semantics: Unreadable or malformed files are errors, missing files are not
//
// Usage:
//
//	file := internal.NewFileSource("/etc/myapp/config.yaml", internal.DefaultParsers())
//	env := internal.NewEnvSource("MYAPP_", os.Environ)
package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NestSeparator splits an environment key into nested config keys.
const NestSeparator = "__"

// FileExtensions lists the recognized config file extensions, in lookup order.
var FileExtensions = []string{"json", "yaml", "yml", "toml"}

// DefaultParsers returns the parsers for every extension in FileExtensions.
func DefaultParsers() map[string]Parser {
	return map[string]Parser{
		"json": parseJSON,
		"yaml": parseYAML,
		"yml":  parseYAML,
		"toml": parseTOML,
	}
}

func parseJSON(data []byte) (map[string]any, error) {
	out := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseYAML(data []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return normalize(out), nil
}

func parseTOML(data []byte) (map[string]any, error) {
	out := make(map[string]any)
	if _, err := toml.Decode(string(data), &out); err != nil {
		return nil, err
	}
	return normalize(out), nil
}

// normalize rewrites nested maps with non-string keys into map[string]any.
func normalize(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeValue(val)
		}
		return t
	default:
		return v
	}
}

// FileSource loads configuration from a single file.
type FileSource struct {
	path   string
	parser Parser
}

// NewFileSource creates a file source. The parser is chosen by the file
// extension; an unknown extension surfaces as an error on Load.
func NewFileSource(path string, parsers map[string]Parser) Source {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return &FileSource{path: path, parser: parsers[ext]}
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.path
}

// Load reads and parses the file. A missing file yields an empty tree.
func (s *FileSource) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	if s.parser == nil {
		return nil, fmt.Errorf("unsupported config format: %s", s.path)
	}

	tree, err := s.parser(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return tree, nil
}

// DotenvSource loads prefixed variables from a dotenv file.
type DotenvSource struct {
	path   string
	prefix string
}

// NewDotenvSource creates a dotenv source keeping only keys with prefix.
func NewDotenvSource(path, prefix string) Source {
	return &DotenvSource{path: path, prefix: prefix}
}

// Name returns the dotenv file path.
func (s *DotenvSource) Name() string {
	return s.path
}

// Load parses the dotenv file. A missing file yields an empty tree.
func (s *DotenvSource) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vars, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	return NestVars(vars, s.prefix), nil
}

// EnvSource loads prefixed variables from the process environment.
type EnvSource struct {
	prefix  string
	environ func() []string
}

// NewEnvSource creates an environment variable source.
func NewEnvSource(prefix string, environ func() []string) Source {
	if environ == nil {
		environ = os.Environ
	}
	return &EnvSource{prefix: prefix, environ: environ}
}

// Name returns a description of the source.
func (s *EnvSource) Name() string {
	return "env:" + s.prefix + "*"
}

// Load reads the environment variables carrying the prefix.
func (s *EnvSource) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for _, kv := range s.environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		vars[key] = value
	}

	return NestVars(vars, s.prefix), nil
}

// NestVars converts flat prefixed variables into a tree. The prefix is
// stripped, keys are lower-cased and split on NestSeparator, and values are
// decoded as YAML scalars so "8080" becomes an int and "true" a bool.
func NestVars(vars map[string]string, prefix string) map[string]any {
	tree := make(map[string]any)

	for key, value := range vars {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, prefix)), NestSeparator)
		if len(path) == 0 || path[0] == "" {
			continue
		}

		node := tree
		for _, part := range path[:len(path)-1] {
			next, ok := node[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[part] = next
			}
			node = next
		}
		node[path[len(path)-1]] = Scalar(value)
	}

	return tree
}

// Scalar decodes a raw string as a YAML scalar, falling back to the string
// itself for empty values, collections and parse failures.
func Scalar(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	switch v.(type) {
	case string, int, int64, uint64, float64, bool:
		return v
	default:
		return raw
	}
}
