package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
)

// EnvConfigDir overrides the directory of the default store.
const EnvConfigDir = "SKYAPI_CONFIG_DIR"

// OwnPluginName is the store name of skyapi's own plugin.
const OwnPluginName = "skyapi"

// ErrNotInstalled is returned when removing a plugin that is not installed.
var ErrNotInstalled = errors.New("plugin not installed")

// Store is a directory of installed API module plugins:
//
//	<root>/catalog.json   installed plugin records
//	<root>/catalog.lock   guards catalog updates across processes
//	<root>/plugins/<name> plugin directories
type Store struct {
	Root string
}

// catalog is the on-disk form of the installed plugin records.
type catalog struct {
	Plugins []Plugin `json:"plugins"`
}

// NewStore creates a store rooted at the provided path.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// DefaultStore returns the store in the user config directory, or in
// $SKYAPI_CONFIG_DIR when set.
func DefaultStore() (*Store, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return NewStore(dir), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locating plugin store: %w", err)
	}
	return NewStore(filepath.Join(base, "skyapi")), nil
}

// Ensure creates the store directories if needed.
func (s Store) Ensure() error {
	if err := os.MkdirAll(s.pluginsDir(), 0o755); err != nil {
		return fmt.Errorf("creating plugin store: %w", err)
	}
	return nil
}

// PluginPath returns the directory a plugin is installed into.
func (s Store) PluginPath(name string) string {
	return filepath.Join(s.pluginsDir(), name)
}

func (s Store) pluginsDir() string  { return filepath.Join(s.Root, "plugins") }
func (s Store) catalogPath() string { return filepath.Join(s.Root, "catalog.json") }
func (s Store) lockPath() string    { return filepath.Join(s.Root, "catalog.lock") }

// LoadPlugins returns the installed plugins sorted by name. A store that
// was never written to has none.
func (s Store) LoadPlugins() ([]Plugin, error) {
	data, err := os.ReadFile(s.catalogPath())
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return []Plugin{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plugin catalog: %w", err)
	}

	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing plugin catalog %s: %w", s.catalogPath(), err)
	}
	if c.Plugins == nil {
		c.Plugins = []Plugin{}
	}
	slices.SortFunc(c.Plugins, func(a, b Plugin) int { return strings.Compare(a.Name, b.Name) })
	return c.Plugins, nil
}

// UpsertPlugin records plugin, replacing any entry with the same name.
func (s Store) UpsertPlugin(plugin Plugin) error {
	if err := ValidateName(plugin.Name); err != nil {
		return err
	}
	return s.update(func(installed []Plugin) ([]Plugin, error) {
		i := slices.IndexFunc(installed, func(p Plugin) bool { return p.Name == plugin.Name })
		if i < 0 {
			return append(installed, plugin), nil
		}
		installed[i] = plugin
		return installed, nil
	})
}

// FindPlugin returns the installed plugin named name, or nil.
func (s Store) FindPlugin(name string) (*Plugin, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	installed, err := s.LoadPlugins()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(installed, func(p Plugin) bool { return p.Name == name })
	if i < 0 {
		return nil, nil
	}
	found := installed[i]
	if found.Path == "" {
		found.Path = s.PluginPath(found.Name)
	}
	return &found, nil
}

// RemovePlugin drops a plugin's record and deletes its directory.
func (s Store) RemovePlugin(name string) (*Plugin, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var removed *Plugin
	err := s.update(func(installed []Plugin) ([]Plugin, error) {
		i := slices.IndexFunc(installed, func(p Plugin) bool { return p.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNotInstalled, name)
		}
		p := installed[i]
		removed = &p
		return slices.Delete(installed, i, i+1), nil
	})
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(s.PluginPath(name)); err != nil {
		return removed, fmt.Errorf("removing plugin directory: %w", err)
	}
	return removed, nil
}

// update applies fn to the catalog while holding the store lock. The
// catalog is left unchanged if fn fails.
func (s Store) update(fn func([]Plugin) ([]Plugin, error)) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking plugin store: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	installed, err := s.LoadPlugins()
	if err != nil {
		return err
	}
	next, err := fn(installed)
	if err != nil {
		return err
	}
	return s.saveCatalog(catalog{Plugins: next})
}

// saveCatalog replaces the catalog file atomically.
func (s Store) saveCatalog(c catalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Root, "catalog-*.json")
	if err != nil {
		return fmt.Errorf("writing plugin catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(append(data, '\n'))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing plugin catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.catalogPath()); err != nil {
		return fmt.Errorf("writing plugin catalog: %w", err)
	}
	return nil
}
