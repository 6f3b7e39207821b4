// Package transpile turns API module sources into module exports.
//
// A Dispatcher picks a Backend by file extension. Starlark modules are
// evaluated in a sandbox; TOML, YAML, JSON and HCL modules are declarative
// data and never yield functions.
package transpile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/albertocavalcante/skyapi/internal/logging"
	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/project"
)

// DefaultTimeout bounds a single Starlark evaluation or function call.
const DefaultTimeout = 5 * time.Second

// ErrUnsupportedSource is returned for module files without a backend.
var ErrUnsupportedSource = errors.New("unsupported module source")

// Host is the resolution a transpile runs in.
type Host interface {
	// Kind is the artifact kind of the module being transpiled.
	Kind() project.Kind
	// Inline resolves v for the project being transpiled, as if v were the
	// module itself. It may finalize the project.
	Inline(v module.Value) (module.Value, error)
}

// Transpiler loads module sources.
type Transpiler interface {
	Transpile(src module.Source, host Host) (module.Export, error)
}

// Backend evaluates module files of one format.
type Backend interface {
	Transpile(path string, data []byte, host Host) (module.Export, error)
}

// Options configure a Dispatcher.
type Options struct {
	// Timeout bounds Starlark evaluation. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger receives debug records. Nil discards them.
	Logger *slog.Logger
}

// Dispatcher routes module files to backends by extension.
type Dispatcher struct {
	logger   *slog.Logger
	backends map[string]Backend
}

// New returns a dispatcher with every built-in backend registered.
func New(opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	d := &Dispatcher{logger: logger, backends: make(map[string]Backend)}
	star := NewStarlark(opts.Timeout)
	d.Register(".star", star)
	d.Register(".sky", star)
	d.Register(".toml", TOML{})
	d.Register(".yaml", YAML{})
	d.Register(".yml", YAML{})
	d.Register(".json", YAML{})
	d.Register(".hcl", HCL{})
	return d
}

// Loaded returns the files that backends read besides the module files
// themselves, such as Starlark helpers pulled in by load().
func (d *Dispatcher) Loaded() []string {
	seen := make(map[string]bool)
	var paths []string
	for _, b := range d.backends {
		tracker, ok := b.(interface{ Loaded() []string })
		if !ok {
			continue
		}
		for _, path := range tracker.Loaded() {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	sort.Strings(paths)
	return paths
}

// Register installs a backend for a file extension such as ".star".
func (d *Dispatcher) Register(ext string, b Backend) {
	d.backends[strings.ToLower(ext)] = b
}

// Extensions returns the registered extensions, sorted.
func (d *Dispatcher) Extensions() []string {
	exts := make([]string, 0, len(d.backends))
	for ext := range d.backends {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Transpile loads src. A loaded source is returned as its default export
// without evaluation.
func (d *Dispatcher) Transpile(src module.Source, host Host) (module.Export, error) {
	if v, ok := src.Loaded(); ok {
		return module.Default(v), nil
	}

	path := src.Path()
	ext := strings.ToLower(filepath.Ext(path))
	backend, ok := d.backends[ext]
	if !ok {
		return module.Export{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return module.Export{}, fmt.Errorf("reading module %s: %w", path, err)
	}

	d.logger.Debug("transpiling module", "path", path, "kind", host.Kind().String())
	return backend.Transpile(path, data, host)
}
