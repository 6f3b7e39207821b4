package transpile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/skyapi/internal/module"
)

// ErrLoadCycle is returned when Starlark modules load each other.
var ErrLoadCycle = errors.New("load cycle")

const (
	hostKey    = "skyapi.host"
	loadingKey = "skyapi.loading"
)

type loadResult struct {
	globals starlark.StringDict
	err     error
}

// Starlark evaluates .star and .sky modules.
//
// A module exports a single value by assigning the global "default";
// otherwise its public globals are its named exports. Modules may load()
// helper files relative to themselves. Helpers are evaluated once per
// Starlark value and cached.
type Starlark struct {
	timeout     time.Duration
	predeclared starlark.StringDict

	mu    sync.Mutex
	cache map[string]*loadResult
}

// NewStarlark returns a Starlark backend whose evaluations and function
// calls are cancelled after timeout.
func NewStarlark(timeout time.Duration) *Starlark {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Starlark{timeout: timeout, cache: make(map[string]*loadResult)}
	s.predeclared = s.modulePredeclared()
	return s
}

// Transpile implements Backend.
func (s *Starlark) Transpile(path string, data []byte, host Host) (module.Export, error) {
	path = filepath.Clean(path)
	thread := s.newThread(path, host, []string{path})

	var globals starlark.StringDict
	err := s.withTimeout(thread, func() (err error) {
		globals, err = starlark.ExecFile(thread, path, data, s.predeclared)
		return err
	})
	if err != nil {
		return module.Export{}, fmt.Errorf("executing %s: %w", path, err)
	}
	return s.exports(path, globals)
}

func (s *Starlark) exports(path string, globals starlark.StringDict) (module.Export, error) {
	if v, ok := globals[module.DefaultExport]; ok {
		native, err := s.toNative(v, path)
		if err != nil {
			return module.Export{}, fmt.Errorf("%s: default: %w", path, err)
		}
		return module.Default(module.FromNative(native)), nil
	}

	fields := make(map[string]any, len(globals))
	for name, v := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		native, err := s.toNative(v, path)
		if err != nil {
			return module.Export{}, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		fields[name] = native
	}
	return module.Named(module.NewObject(fields)), nil
}

func (s *Starlark) newThread(path string, host Host, loading []string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: path,
		Load: s.load,
	}
	if host != nil {
		thread.SetLocal(hostKey, host)
	}
	thread.SetLocal(loadingKey, loading)
	return thread
}

// withTimeout runs fn, cancelling thread if it outlives the timeout.
func (s *Starlark) withTimeout(thread *starlark.Thread, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	return fn()
}

// Loaded returns the helper files pulled in by load(), sorted.
func (s *Starlark) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.cache))
	for path := range s.cache {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// load implements load() relative to the loading file.
func (s *Starlark) load(thread *starlark.Thread, name string) (starlark.StringDict, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(thread.Name), name)
	}
	path = filepath.Clean(path)

	loading, _ := thread.Local(loadingKey).([]string)
	if slices.Contains(loading, path) {
		return nil, fmt.Errorf("%w: %s", ErrLoadCycle, strings.Join(append(slices.Clone(loading), path), " -> "))
	}

	s.mu.Lock()
	cached, ok := s.cache[path]
	s.mu.Unlock()
	if ok {
		return cached.globals, cached.err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	child := s.newThread(path, nil, append(slices.Clone(loading), path))
	var globals starlark.StringDict
	err = s.withTimeout(child, func() (err error) {
		globals, err = starlark.ExecFile(child, path, data, s.predeclared)
		return err
	})
	if errors.Is(err, ErrLoadCycle) {
		return nil, err
	}

	s.mu.Lock()
	s.cache[path] = &loadResult{globals: globals, err: err}
	s.mu.Unlock()
	return globals, err
}

// starlarkFunc is a deferred configuration function defined in Starlark.
type starlarkFunc struct {
	s    *Starlark
	fn   starlark.Callable
	path string
}

func (f *starlarkFunc) Name() string { return f.fn.Name() }

// Call invokes the function. Functions that declare a parameter receive a
// project struct with root, name, kind, path and options fields.
func (f *starlarkFunc) Call(args module.CallArgs) (module.Value, error) {
	thread := f.s.newThread(f.path, nil, []string{f.path})

	var callArgs starlark.Tuple
	if fn, ok := f.fn.(*starlark.Function); ok && (fn.NumParams() > 0 || fn.HasVarargs()) {
		project, err := projectStruct(args)
		if err != nil {
			return module.Value{}, err
		}
		callArgs = starlark.Tuple{project}
	}

	var result starlark.Value
	err := f.s.withTimeout(thread, func() (err error) {
		result, err = starlark.Call(thread, f.fn, callArgs, nil)
		return err
	})
	if err != nil {
		return module.Value{}, err
	}

	native, err := f.s.toNative(result, f.path)
	if err != nil {
		return module.Value{}, fmt.Errorf("%s: result: %w", f.Name(), err)
	}
	return module.FromNative(native), nil
}
