package skyconfig

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"time"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/skyapi/internal/transpile"
)

// DefaultStarlarkTimeout is the default execution timeout for Starlark files.
const DefaultStarlarkTimeout = transpile.DefaultTimeout

// ErrConfigureNotFound is returned when skyapi.star doesn't define a configure() function.
var ErrConfigureNotFound = errors.New("skyapi.star must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file.
// The file must define a configure() function that returns a dict.
// The execution is sandboxed: no filesystem or network access, with a timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	thread := &starlark.Thread{Name: path}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}
	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}
	return dictToConfig(dict)
}

// configPredeclared is the module sandbox plus duration().
func configPredeclared() starlark.StringDict {
	predeclared := maps.Clone(transpile.SandboxPredeclared())
	predeclared["duration"] = starlark.NewBuiltin("duration", builtinDuration)
	return predeclared
}

// builtinDuration implements duration(s) -> string.
// Validates that the string is a valid Go duration.
func builtinDuration(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs("duration", args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	if _, err := time.ParseDuration(s); err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return starlark.String(s), nil
}

// dictToConfig converts a Starlark dict to a Config struct. Sections left
// out stay zero so that Merge keeps the defaults.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name  string
		parse func(*starlark.Dict, *Config) error
	}{
		{"resolve", parseResolveConfig},
		{"log", parseLogConfig},
		{"plugins", parsePluginsConfig},
	}
	for _, sec := range sections {
		v, found, _ := d.Get(starlark.String(sec.name))
		if !found {
			continue
		}
		sd, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s must be a dict, got %s", sec.name, v.Type())
		}
		if err := sec.parse(sd, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s config: %w", sec.name, err)
		}
	}
	return cfg, nil
}

func parseResolveConfig(d *starlark.Dict, cfg *Config) error {
	if v, found, _ := d.Get(starlark.String("recurse")); found {
		b, ok := v.(starlark.Bool)
		if !ok {
			return fmt.Errorf("recurse must be a bool, got %s", v.Type())
		}
		recurse := bool(b)
		cfg.Resolve.Recurse = &recurse
	}

	if v, found, _ := d.Get(starlark.String("timeout")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("timeout must be a string, got %s", v.Type())
		}
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		cfg.Resolve.Timeout = Duration{dur}
	}

	if err := getString(d, "own_plugin", &cfg.Resolve.OwnPlugin); err != nil {
		return err
	}
	if err := getString(d, "companion", &cfg.Resolve.Companion); err != nil {
		return err
	}

	if v, found, _ := d.Get(starlark.String("extensions")); found {
		list, ok := v.(*starlark.List)
		if !ok {
			return fmt.Errorf("extensions must be a list, got %s", v.Type())
		}
		cfg.Resolve.Extensions = nil
		for i := 0; i < list.Len(); i++ {
			s, ok := starlark.AsString(list.Index(i))
			if !ok {
				return fmt.Errorf("extensions[%d] must be a string", i)
			}
			cfg.Resolve.Extensions = append(cfg.Resolve.Extensions, s)
		}
	}
	return nil
}

func parseLogConfig(d *starlark.Dict, cfg *Config) error {
	if err := getString(d, "level", &cfg.Log.Level); err != nil {
		return err
	}
	return getString(d, "format", &cfg.Log.Format)
}

func parsePluginsConfig(d *starlark.Dict, cfg *Config) error {
	return getString(d, "store", &cfg.Plugins.Store)
}

func getString(d *starlark.Dict, key string, dst *string) error {
	v, found, _ := d.Get(starlark.String(key))
	if !found {
		return nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return fmt.Errorf("%s must be a string, got %s", key, v.Type())
	}
	*dst = s
	return nil
}
