// Package configuration loads the gateway's process-wide configuration
// from a YAML file with an environment-variable overlay, in the style of
// the teacher's own configuration package: a plain struct tagged for
// gopkg.in/yaml.v2, loaded once at startup and shared read-only thereafter.
//
// Note that the environment-variable override scheme (see parser.go) is
// keyed by Go struct field names, uppercased and joined with "_", not by
// the yaml keys.
package configuration

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/reposynth/reposynth/rerror"
)

// EnvPrefix is the prefix recognized for environment-variable overrides of
// loaded configuration fields (see Parser.overwriteFields).
const EnvPrefix = "REPOSYNTH_CONF"

// PathEnvVar, when set, overrides the default config file location.
const PathEnvVar = "REPOSYNTH_CONFIG_PATH"

// Configuration is the gateway's process-wide, immutable-after-load
// configuration. The first six fields below are exactly the recognized
// keys; Log and MetricsAddr are ambient additions carried the way the
// teacher carries logging configuration alongside its domain configuration.
type Configuration struct {
	// CompositesCache is the directory that published composite
	// repositories are stored under.
	CompositesCache string `yaml:"composites-cache"`

	// LocalCache is the directory that per-artifact cache entries are
	// stored under.
	LocalCache string `yaml:"local-cache"`

	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string `yaml:"listen-addr"`

	// Gitlabs maps a source name to a Gitlab job-artifacts upstream.
	Gitlabs map[string]Gitlab `yaml:"gitlabs,omitempty"`

	// LocalSource maps a source name to a local directory tree.
	LocalSource map[string]Local `yaml:"local-source,omitempty"`

	// RemoteSource maps a source name to a remote static directory tree.
	RemoteSource map[string]Remote `yaml:"remote-source,omitempty"`

	// Log configures the logging subsystem. Ambient: carried regardless
	// of the feature-scoped non-goals.
	Log Log `yaml:"log,omitempty"`

	// MetricsAddr, if set, serves Prometheus metrics on a separate
	// listener.
	MetricsAddr string `yaml:"metrics-addr,omitempty"`
}

// Gitlab describes one named Gitlab job-artifacts upstream.
type Gitlab struct {
	APIKey   string `yaml:"api-key"`
	Hostname string `yaml:"hostname"`
}

// Local describes one named local-directory source.
type Local struct {
	Root string `yaml:"root"`
}

// Remote describes one named remote static-tree source.
type Remote struct {
	BaseURL string `yaml:"base-url"`
}

// Log configures the logging subsystem.
type Log struct {
	// Level is one of trace/debug/info/warn/error.
	Level string `yaml:"level,omitempty"`

	// Formatter is "text" or "json".
	Formatter string `yaml:"formatter,omitempty"`
}

// sourceSpace identifies which of the three disjoint source-name
// namespaces a name was first seen in, for the collision check in
// Validate.
type sourceSpace string

// Validate checks the invariants the parser and materializers both rely
// on: disjoint source-name spaces (spec.md §3 Config).
func (c *Configuration) Validate() error {
	seen := make(map[string]sourceSpace)

	check := func(name string, space sourceSpace) error {
		if prior, ok := seen[name]; ok && prior != space {
			return rerror.Configuration(nil, "source name %q used in both %s and %s", name, prior, space)
		}
		seen[name] = space
		return nil
	}

	for name := range c.Gitlabs {
		if err := check(name, "gitlabs"); err != nil {
			return err
		}
	}
	for name := range c.LocalSource {
		if err := check(name, "local-source"); err != nil {
			return err
		}
	}
	for name := range c.RemoteSource {
		if err := check(name, "remote-source"); err != nil {
			return err
		}
	}

	if c.CompositesCache == "" {
		return rerror.Configuration(nil, "composites-cache is required")
	}
	if c.LocalCache == "" {
		return rerror.Configuration(nil, "local-cache is required")
	}
	if c.ListenAddr == "" {
		return rerror.Configuration(nil, "listen-addr is required")
	}

	return nil
}

// Load reads and parses the configuration file at path (if non-empty),
// falling back to PathEnvVar and then the platform default config
// location, and overlays REPOSYNTH_CONF_* environment variables on top.
func Load(path string) (*Configuration, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, rerror.Configuration(err, "reading %s", resolved)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, rerror.Configuration(err, "parsing %s", resolved)
		}
	}

	if err := NewParser(EnvPrefix).Overlay(&cfg); err != nil {
		return nil, rerror.Configuration(err, "applying environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(PathEnvVar); p != "" {
		return p, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", nil
	}

	candidate := filepath.Join(dir, "reposynth", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}

// Example returns a worked example configuration, for the CLI's
// example-config subcommand.
func Example() Configuration {
	return Configuration{
		CompositesCache: "/storage/for/repo-composites",
		LocalCache:      "/storage/for/cached-artifacts",
		ListenAddr:      "127.0.0.1:4444",
		Gitlabs: map[string]Gitlab{
			"myserver": {
				APIKey:   "SomeAPIKeyObtainedFromGitlab",
				Hostname: "git.myserver.com",
			},
		},
		LocalSource: map[string]Local{
			"local": {Root: "/opt/build-output"},
		},
		RemoteSource: map[string]Remote{
			"mirror": {BaseURL: "https://mirror.example.com/artifacts"},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// String renders the configuration as YAML, e.g. for --dump-config.
func (c Configuration) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<unrenderable configuration: %v>", err)
	}
	return string(out)
}
