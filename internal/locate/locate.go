// Package locate finds API module files on disk.
package locate

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the module extensions tried, in priority order, when
// a request names a module without its extension.
var DefaultExtensions = []string{".star", ".sky", ".toml", ".yaml", ".yml", ".json", ".hcl"}

// Resolve finds the file a module request refers to. A relative request is
// taken relative to root. The request is tried as is, then with each
// extension in order. It reports false when no regular file matches.
func Resolve(root, request string, exts []string) (string, bool) {
	if exts == nil {
		exts = DefaultExtensions
	}
	base := request
	if !filepath.IsAbs(base) {
		base = filepath.Join(root, request)
	}

	if isFile(base) {
		return base, true
	}
	for _, ext := range exts {
		if candidate := base + ext; isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// IsLocalRequest reports whether a plugin request is written as a path
// rather than a name.
func IsLocalRequest(request string) bool {
	return filepath.IsAbs(request) ||
		request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../")
}

// PluginDir finds the directory of a local plugin declared from root.
// Path requests are resolved relative to root; names are looked up under
// root/plugins.
func PluginDir(root, request string) (string, bool) {
	var dir string
	switch {
	case request == "":
		return "", false
	case filepath.IsAbs(request):
		dir = filepath.Clean(request)
	case IsLocalRequest(request):
		dir = filepath.Join(root, request)
	default:
		dir = filepath.Join(root, "plugins", request)
	}
	if !isDir(dir) {
		return "", false
	}
	return dir, true
}

// FindProjectRoot searches upward from start for a directory holding a
// sky-config module. If none is found it returns start.
func FindProjectRoot(start string, exts []string) string {
	dir := start
	for {
		if _, ok := Resolve(dir, "./sky-config", exts); ok {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
