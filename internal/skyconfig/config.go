// Package skyconfig loads skyapi tool settings.
//
// It supports two configuration formats:
//   - skyapi.star: Starlark configuration with a configure() function
//   - skyapi.toml: declarative TOML configuration
//
// DiscoverConfig walks up from a project directory to the enclosing git
// root. The SKYAPI_CONFIG environment variable and the --config flag name a
// file explicitly.
package skyconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config file names.
const (
	// ConfigStar is the Starlark config filename.
	ConfigStar = "skyapi.star"
	// ConfigTOML is the TOML config filename.
	ConfigTOML = "skyapi.toml"
)

// EnvConfig is the environment variable for specifying config file path.
const EnvConfig = "SKYAPI_CONFIG"

// ErrConflict is returned when multiple config files exist in the same directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Config represents the skyapi settings.
type Config struct {
	// Resolve controls API module resolution.
	Resolve ResolveConfig `json:"resolve" toml:"resolve"`

	// Log controls diagnostics output.
	Log LogConfig `json:"log" toml:"log"`

	// Plugins controls the local plugin store.
	Plugins PluginsConfig `json:"plugins" toml:"plugins"`
}

// ResolveConfig contains resolver settings.
type ResolveConfig struct {
	// Recurse resolves declared plugins. Nil means true.
	Recurse *bool `json:"recurse,omitempty" toml:"recurse"`

	// Timeout bounds each Starlark module evaluation.
	Timeout Duration `json:"timeout" toml:"timeout"`

	// OwnPlugin is the directory of the plugin inserted into every root
	// config. Empty means the store location of the skyapi plugin.
	OwnPlugin string `json:"own_plugin" toml:"own_plugin"`

	// Companion is the request for the companion node module.
	Companion string `json:"companion" toml:"companion"`

	// Extensions lists module extensions in lookup order.
	Extensions []string `json:"extensions" toml:"extensions"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" toml:"level"`

	// Format is text or json.
	Format string `json:"format" toml:"format"`
}

// PluginsConfig contains plugin store settings.
type PluginsConfig struct {
	// Store overrides the plugin store root.
	Store string `json:"store" toml:"store"`
}

// Duration wraps time.Duration for TOML/JSON string parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return nil, nil
	}
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Resolve: ResolveConfig{
			Timeout:   Duration{DefaultStarlarkTimeout},
			Companion: "./sky-node",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// RecurseEnabled reports whether declared plugins are resolved.
func (c *Config) RecurseEnabled() bool {
	return c.Resolve.Recurse == nil || *c.Resolve.Recurse
}

// LoadConfig loads configuration from the specified path.
// The format is auto-detected based on file extension. Relative paths in
// the file are taken relative to the file's directory.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	ext := filepath.Ext(path)
	switch ext {
	case ".toml":
		cfg, err = LoadTOMLConfig(path)
	case ".star", ".sky":
		cfg, err = LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .star or .toml)", ext)
	}
	if err != nil {
		return nil, err
	}
	cfg.anchor(filepath.Dir(path))
	return cfg, nil
}

// anchor makes relative filesystem settings absolute against dir.
func (c *Config) anchor(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Resolve.OwnPlugin = abs(c.Resolve.OwnPlugin)
	c.Plugins.Store = abs(c.Plugins.Store)
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If SKYAPI_CONFIG env var is set, use that path
//  2. Walk up from startDir looking for config files, stopping at the git root
//
// The loaded file is merged over DefaultConfig. If no config is found,
// returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return withDefaults(cfg), envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	gitRoot := findGitRoot(absDir)

	dir := absDir
	for {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}
		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return withDefaults(cfg), configPath, nil
		}

		if gitRoot != "" && dir == gitRoot {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

func withDefaults(cfg *Config) *Config {
	out := DefaultConfig()
	out.Merge(cfg)
	return out
}

// findConfigInDir looks for config files in a directory.
// Returns an error if both formats exist and ("", nil) if neither does.
func findConfigInDir(dir string) (string, error) {
	starPath := filepath.Join(dir, ConfigStar)
	tomlPath := filepath.Join(dir, ConfigTOML)

	var found []string
	if fileExists(starPath) {
		found = append(found, ConfigStar)
	}
	if fileExists(tomlPath) {
		found = append(found, ConfigTOML)
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		return "", fmt.Errorf("%w: found %s in %s", ErrConflict, strings.Join(found, ", "), dir)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// findGitRoot finds the git repository root from a starting directory.
// Returns empty string if not in a git repository.
func findGitRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Merge merges the other config into this one.
// Non-zero values from other override values in c. Extensions replace the
// list rather than extend it, since order is significant.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Resolve.Recurse != nil {
		recurse := *other.Resolve.Recurse
		c.Resolve.Recurse = &recurse
	}
	if other.Resolve.Timeout.Duration != 0 {
		c.Resolve.Timeout = other.Resolve.Timeout
	}
	if other.Resolve.OwnPlugin != "" {
		c.Resolve.OwnPlugin = other.Resolve.OwnPlugin
	}
	if other.Resolve.Companion != "" {
		c.Resolve.Companion = other.Resolve.Companion
	}
	if len(other.Resolve.Extensions) > 0 {
		c.Resolve.Extensions = append([]string(nil), other.Resolve.Extensions...)
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	if other.Plugins.Store != "" {
		c.Plugins.Store = other.Plugins.Store
	}
}
