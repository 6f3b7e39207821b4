package plugins

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/albertocavalcante/skyapi/internal/locate"
)

// ErrNotAPIPlugin is returned when installing a directory without API modules.
var ErrNotAPIPlugin = errors.New("directory has no sky-config or sky-node module")

// InstallFromPath installs a plugin directory into the store, replacing any
// previous install of the same name.
func (s Store) InstallFromPath(name, path, version string) (Plugin, error) {
	if err := ValidateName(name); err != nil {
		return Plugin{}, err
	}
	if path == "" {
		return Plugin{}, fmt.Errorf("install path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Plugin{}, fmt.Errorf("stat plugin: %w", err)
	}
	if !info.IsDir() {
		return Plugin{}, fmt.Errorf("plugin path %q is not a directory", path)
	}
	if !hasAPIModule(path) {
		return Plugin{}, fmt.Errorf("%s: %w", path, ErrNotAPIPlugin)
	}

	if err := s.Ensure(); err != nil {
		return Plugin{}, err
	}

	dest := s.PluginPath(name)
	if err := os.RemoveAll(dest); err != nil {
		return Plugin{}, fmt.Errorf("install plugin: %w", err)
	}
	if err := copyTree(path, dest); err != nil {
		return Plugin{}, fmt.Errorf("install plugin: %w", err)
	}

	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}
	plugin := Plugin{
		Name:        name,
		Version:     version,
		Source:      source,
		InstalledAt: time.Now().UTC(),
		Path:        dest,
	}
	if err := s.UpsertPlugin(plugin); err != nil {
		return Plugin{}, err
	}
	return plugin, nil
}

func hasAPIModule(dir string) bool {
	for _, request := range []string{"./sky-config", "./sky-node"} {
		if _, ok := locate.Resolve(dir, request, nil); ok {
			return true
		}
	}
	return false
}

// copyTree copies the regular files and directories under src to dest.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(srcPath, destPath string, mode os.FileMode) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { _ = dest.Close() }()

	if _, err := io.Copy(dest, src); err != nil {
		return err
	}
	return dest.Sync()
}
