package internal

import (
	"path/filepath"
	"strings"
)

// EnvPrefix returns the environment prefix for an application name:
// upper-cased, dashes and dots replaced by underscores, with a trailing underscore.
func EnvPrefix(app string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return strings.ToUpper(r.Replace(app)) + "_"
}

// BuildSources lists the sources of one application in increasing precedence:
// per-user config files, working directory files, the dotenv file, then the
// process environment.
func BuildSources(layout Layout) []Source {
	parsers := layout.Parsers
	if parsers == nil {
		parsers = DefaultParsers()
	}
	prefix := EnvPrefix(layout.App)

	var sources []Source

	if layout.ConfigDir != "" {
		for _, ext := range FileExtensions {
			path := filepath.Join(layout.ConfigDir, layout.App, "config."+ext)
			sources = append(sources, NewFileSource(path, parsers))
		}
	}

	for _, ext := range FileExtensions {
		path := filepath.Join(layout.WorkDir, layout.App+"."+ext)
		sources = append(sources, NewFileSource(path, parsers))
	}

	if layout.DotenvFile != "" {
		sources = append(sources, NewDotenvSource(layout.DotenvFile, prefix))
	}

	sources = append(sources, NewEnvSource(prefix, layout.Environ))

	return sources
}
