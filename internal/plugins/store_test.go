package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writePluginDir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sky-config.star"), []byte("plugins = []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lib", "helpers.star"), []byte("X = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidateName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{name: "skyapi", ok: true},
		{name: "sky-seo", ok: true},
		{name: "Sky", ok: false},
		{name: "sky_seo", ok: false},
		{name: "-bad", ok: false},
		{name: "./local", ok: false},
		{name: "", ok: false},
	}

	for _, tc := range cases {
		err := ValidateName(tc.name)
		if tc.ok && err != nil {
			t.Fatalf("expected name %q to be valid: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("expected name %q to be invalid", tc.name)
		}
	}
}

func TestDefaultStoreOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	store, err := DefaultStore()
	if err != nil {
		t.Fatalf("DefaultStore: %v", err)
	}
	if store.Root != dir {
		t.Errorf("Root = %q, want %q", store.Root, dir)
	}
}

func TestInstallAndRemovePlugin(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "store"))

	src := filepath.Join(root, "seo")
	writePluginDir(t, src)

	plugin, err := store.InstallFromPath("seo", src, "1.2.3")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if plugin.Path != store.PluginPath("seo") {
		t.Fatalf("plugin path = %q, want %q", plugin.Path, store.PluginPath("seo"))
	}
	if _, err := os.Stat(filepath.Join(plugin.Path, "lib", "helpers.star")); err != nil {
		t.Fatalf("installed tree incomplete: %v", err)
	}

	found, err := store.FindPlugin("seo")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.Version != "1.2.3" {
		t.Fatalf("FindPlugin() = %+v, want version 1.2.3", found)
	}

	removed, err := store.RemovePlugin("seo")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Name != "seo" {
		t.Fatalf("expected removed plugin seo, got %q", removed.Name)
	}
	if _, err := os.Stat(plugin.Path); !os.IsNotExist(err) {
		t.Fatalf("expected plugin directory removed, got %v", err)
	}

	if _, err := store.RemovePlugin("seo"); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("second remove error = %v, want ErrNotInstalled", err)
	}
}

func TestFindPluginMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	found, err := store.FindPlugin("absent")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("FindPlugin() = %+v, want nil", found)
	}
}

func TestStoreCatalogFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	for _, name := range []string{"seo", "analytics"} {
		if err := store.UpsertPlugin(Plugin{Name: name, Version: "1"}); err != nil {
			t.Fatalf("UpsertPlugin(%s): %v", name, err)
		}
	}
	if _, err := store.RemovePlugin("missing"); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("RemovePlugin(missing) error = %v, want ErrNotInstalled", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "catalog.json"))
	if err != nil {
		t.Fatal(err)
	}
	var c struct {
		Plugins []struct {
			Name string `json:"name"`
		} `json:"plugins"`
	}
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("catalog is not JSON: %v\n%s", err, data)
	}
	var names []string
	for _, p := range c.Plugins {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"seo", "analytics"}, names); diff != "" {
		t.Errorf("catalog names mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if diff := cmp.Diff([]string{"catalog.json", "catalog.lock", "plugins"}, got); diff != "" {
		t.Errorf("store entries mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreConcurrency(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writePluginDir(t, src)

	tests := []struct {
		name    string
		workers int
	}{
		{"SingleWorker", 1},
		{"LowConcurrency", 5},
		{"HighConcurrency", 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			subStore := NewStore(filepath.Join(root, tc.name))

			errc := make(chan error, tc.workers)
			for i := 0; i < tc.workers; i++ {
				go func(id int) {
					_, err := subStore.InstallFromPath(fmt.Sprintf("p%d", id), src, "1.0.0")
					errc <- err
				}(i)
			}

			for i := 0; i < tc.workers; i++ {
				if err := <-errc; err != nil {
					t.Errorf("worker failed: %v", err)
				}
			}

			plugins, err := subStore.LoadPlugins()
			if err != nil {
				t.Fatalf("load plugins: %v", err)
			}
			if len(plugins) != tc.workers {
				t.Fatalf("expected %d plugins, got %d", tc.workers, len(plugins))
			}
		})
	}
}

func TestStoreConcurrentUpsert(t *testing.T) {
	store := NewStore(t.TempDir())

	workers := 20
	errc := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			errc <- store.UpsertPlugin(Plugin{
				Name:    "same-plugin",
				Version: fmt.Sprintf("1.0.%d", id),
			})
		}(i)
	}

	for i := 0; i < workers; i++ {
		if err := <-errc; err != nil {
			t.Errorf("worker failed: %v", err)
		}
	}

	plugins, err := store.LoadPlugins()
	if err != nil {
		t.Fatalf("load plugins: %v", err)
	}
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}
}
