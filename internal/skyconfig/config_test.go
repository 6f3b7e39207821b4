package skyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "full config",
			content: `[resolve]
recurse = false
timeout = "2s"
own_plugin = "/opt/skyapi"
companion = "./node"
extensions = [".star", ".toml"]

[log]
level = "debug"
format = "json"

[plugins]
store = "/var/skyapi"
`,
			check: func(t *testing.T, cfg *Config) {
				want := ResolveConfig{
					Recurse:    ptr(false),
					Timeout:    Duration{2 * time.Second},
					OwnPlugin:  "/opt/skyapi",
					Companion:  "./node",
					Extensions: []string{".star", ".toml"},
				}
				if diff := cmp.Diff(want, cfg.Resolve); diff != "" {
					t.Errorf("resolve mismatch (-want +got):\n%s", diff)
				}
				if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
					t.Errorf("log = %+v", cfg.Log)
				}
				if cfg.Plugins.Store != "/var/skyapi" {
					t.Errorf("store = %q", cfg.Plugins.Store)
				}
			},
		},
		{
			name:    "empty file",
			content: "",
			check: func(t *testing.T, cfg *Config) {
				if !cfg.RecurseEnabled() {
					t.Error("recurse should default to true")
				}
			},
		},
		{
			name:    "invalid duration",
			content: "[resolve]\ntimeout = \"soon\"\n",
			wantErr: true,
		},
		{
			name:    "unknown key",
			content: "[resolve]\nrecursive = true\n",
			wantErr: true,
		},
		{
			name:    "invalid toml",
			content: "[resolve\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ConfigTOML)
			writeFile(t, path, tt.content)

			cfg, err := LoadTOMLConfig(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadTOMLConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadStarlarkConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr error
		anyErr  bool
	}{
		{
			name: "basic configure function",
			content: `
def configure():
    return {
        "resolve": {
            "recurse": False,
            "timeout": duration("90s"),
            "extensions": [".star"],
        },
        "log": {"level": "info"},
    }
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.RecurseEnabled() {
					t.Error("recurse = true, want false")
				}
				if cfg.Resolve.Timeout.Duration != 90*time.Second {
					t.Errorf("timeout = %v, want 90s", cfg.Resolve.Timeout.Duration)
				}
				if diff := cmp.Diff([]string{".star"}, cfg.Resolve.Extensions); diff != "" {
					t.Errorf("extensions mismatch (-want +got):\n%s", diff)
				}
				if cfg.Log.Level != "info" {
					t.Errorf("level = %q, want info", cfg.Log.Level)
				}
			},
		},
		{
			name: "conditional with getenv",
			content: `
def configure():
    ci = getenv("CI", "") != ""
    return {"log": {"format": "json" if ci else "text"}}
`,
			env: map[string]string{"CI": "true"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Log.Format != "json" {
					t.Errorf("format = %q, want json (CI=true)", cfg.Log.Format)
				}
			},
		},
		{
			name: "plugins store",
			content: `
def configure():
    return {"plugins": {"store": "/srv/plugins"}}
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Plugins.Store != "/srv/plugins" {
					t.Errorf("store = %q", cfg.Plugins.Store)
				}
			},
		},
		{
			name:    "missing configure",
			content: `x = 1`,
			wantErr: ErrConfigureNotFound,
		},
		{
			name: "configure returns list",
			content: `
def configure():
    return []
`,
			wantErr: ErrConfigureReturnType,
		},
		{
			name: "section must be a dict",
			content: `
def configure():
    return {"resolve": "fast"}
`,
			anyErr: true,
		},
		{
			name: "recurse must be a bool",
			content: `
def configure():
    return {"resolve": {"recurse": "yes"}}
`,
			anyErr: true,
		},
		{
			name: "invalid duration builtin",
			content: `
def configure():
    return {"resolve": {"timeout": duration("soon")}}
`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), ConfigStar)
			writeFile(t, path, tt.content)

			cfg, err := LoadStarlarkConfig(path, DefaultStarlarkTimeout)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Fatal("expected error, got nil")
				}
			default:
				if err != nil {
					t.Fatalf("LoadStarlarkConfig() error = %v", err)
				}
				tt.check(t, cfg)
			}
		})
	}
}

func TestStarlarkTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigStar)
	writeFile(t, path, `
def configure():
    while True:
        pass
    return {}
`)

	start := time.Now()
	_, err := LoadStarlarkConfig(path, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("expected timeout error, got nil")
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestDiscoverConfig(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, dir string)
		wantFile string
		wantErr  error
	}{
		{
			name: "finds skyapi.star",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ConfigStar), "def configure():\n    return {}\n")
			},
			wantFile: ConfigStar,
		},
		{
			name: "finds skyapi.toml",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ConfigTOML), "[log]\nlevel = \"info\"\n")
			},
			wantFile: ConfigTOML,
		},
		{
			name: "conflict between skyapi.star and skyapi.toml",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ConfigStar), "def configure():\n    return {}\n")
				writeFile(t, filepath.Join(dir, ConfigTOML), "")
			},
			wantErr: ErrConflict,
		},
		{
			name:  "no config",
			setup: func(t *testing.T, dir string) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfig, "")
			dir := t.TempDir()
			if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
				t.Fatal(err)
			}
			tt.setup(t, dir)

			cfg, path, err := DiscoverConfig(dir)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DiscoverConfig() error = %v", err)
			}
			if tt.wantFile == "" {
				if path != "" {
					t.Errorf("path = %q, want none", path)
				}
			} else if filepath.Base(path) != tt.wantFile {
				t.Errorf("path = %q, want %s", path, tt.wantFile)
			}
			if cfg.Resolve.Companion != "./sky-node" {
				t.Errorf("companion = %q, defaults should survive discovery", cfg.Resolve.Companion)
			}
		})
	}
}

func TestDiscoverConfigWalksUp(t *testing.T) {
	t.Setenv(EnvConfig, "")
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, ConfigTOML), "[resolve]\nown_plugin = \"tools/skyapi\"\n")

	sub := filepath.Join(root, "sites", "blog")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := DiscoverConfig(sub)
	if err != nil {
		t.Fatalf("DiscoverConfig() error = %v", err)
	}
	if path != filepath.Join(root, ConfigTOML) {
		t.Errorf("path = %q", path)
	}
	if want := filepath.Join(root, "tools", "skyapi"); cfg.Resolve.OwnPlugin != want {
		t.Errorf("own_plugin = %q, want %q (relative to config file)", cfg.Resolve.OwnPlugin, want)
	}
}

func TestDiscoverConfigStopsAtGitRoot(t *testing.T) {
	t.Setenv(EnvConfig, "")
	outer := t.TempDir()
	writeFile(t, filepath.Join(outer, ConfigTOML), "[log]\nlevel = \"debug\"\n")

	repo := filepath.Join(outer, "repo")
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := DiscoverConfig(repo)
	if err != nil {
		t.Fatalf("DiscoverConfig() error = %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, config outside the repository should be ignored", path)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q, want default warn", cfg.Log.Level)
	}
}

func TestDiscoverConfigEnvVar(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom.star")
	writeFile(t, configPath, `def configure():
    return {"resolve": {"timeout": "9s"}}
`)
	t.Setenv(EnvConfig, configPath)

	anotherDir := t.TempDir()
	writeFile(t, filepath.Join(anotherDir, ConfigTOML), "[resolve]\ntimeout = \"1s\"\n")

	cfg, foundPath, err := DiscoverConfig(anotherDir)
	if err != nil {
		t.Fatalf("DiscoverConfig() error = %v", err)
	}
	if foundPath != configPath {
		t.Errorf("foundPath = %q, want %q", foundPath, configPath)
	}
	if cfg.Resolve.Timeout.Duration != 9*time.Second {
		t.Errorf("timeout = %v, want 9s", cfg.Resolve.Timeout.Duration)
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tomlPath := filepath.Join(tmpDir, "test.toml")
	writeFile(t, tomlPath, "[resolve]\ntimeout = \"30s\"\n")
	cfg, err := LoadConfig(tomlPath)
	if err != nil {
		t.Fatalf("LoadConfig(toml) error = %v", err)
	}
	if cfg.Resolve.Timeout.Duration != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Resolve.Timeout.Duration)
	}

	starPath := filepath.Join(tmpDir, "test.star")
	writeFile(t, starPath, "def configure():\n    return {\"plugins\": {\"store\": \"store\"}}\n")
	cfg, err = LoadConfig(starPath)
	if err != nil {
		t.Fatalf("LoadConfig(star) error = %v", err)
	}
	if want := filepath.Join(tmpDir, "store"); cfg.Plugins.Store != want {
		t.Errorf("store = %q, want %q", cfg.Plugins.Store, want)
	}

	jsonPath := filepath.Join(tmpDir, "test.json")
	writeFile(t, jsonPath, "{}")
	if _, err := LoadConfig(jsonPath); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	base.Resolve.Extensions = []string{".star", ".toml"}

	other := &Config{
		Resolve: ResolveConfig{
			Recurse:    ptr(false),
			Extensions: []string{".yaml"},
		},
		Log: LogConfig{Level: "debug"},
	}
	base.Merge(other)

	if base.RecurseEnabled() {
		t.Error("recurse = true, want false")
	}
	if diff := cmp.Diff([]string{".yaml"}, base.Resolve.Extensions); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
	if base.Log.Level != "debug" {
		t.Errorf("level = %q, want debug", base.Log.Level)
	}
	if base.Log.Format != "text" {
		t.Errorf("format = %q, want text (should keep original)", base.Log.Format)
	}
	if base.Resolve.Timeout.Duration != DefaultStarlarkTimeout {
		t.Errorf("timeout = %v, want default", base.Resolve.Timeout.Duration)
	}

	*other.Resolve.Recurse = true
	if base.RecurseEnabled() {
		t.Error("Merge should copy recurse, not alias it")
	}

	base.Merge(nil)
}

func TestDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"1m", 1 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"", 0, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if d.Duration != tt.want {
				t.Errorf("UnmarshalText() = %v, want %v", d.Duration, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
