package transpile

import (
	"fmt"
	"maps"
	"os"
	"runtime"

	starjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/project"
)

// SandboxPredeclared returns the values every sandboxed Starlark file sees.
// There is no filesystem or network access.
func SandboxPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"struct":    starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json":      starjson.Module,
	}
}

// modulePredeclared adds the API module helpers to the sandbox.
func (s *Starlark) modulePredeclared() starlark.StringDict {
	predeclared := maps.Clone(SandboxPredeclared())
	predeclared["use_config"] = s.useBuiltin(project.KindConfig)
	predeclared["use_node"] = s.useBuiltin(project.KindNode)
	return predeclared
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}

	val := os.Getenv(name)
	if val == "" {
		return defaultVal, nil
	}
	return starlark.String(val), nil
}

// useBuiltin implements use_config(value) and use_node(value).
//
// The value is resolved right away as the module of the project being
// evaluated, which finalizes the project unless its resolveImmediate option
// is off. The resolved value is returned.
func (s *Starlark) useBuiltin(kind project.Kind) *starlark.Builtin {
	name := "use_" + kind.String()
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var arg starlark.Value
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &arg); err != nil {
			return nil, err
		}

		host, ok := thread.Local(hostKey).(Host)
		if !ok {
			return nil, fmt.Errorf("%s: only available at the top level of an API module", name)
		}
		if host.Kind() != kind {
			return nil, fmt.Errorf("%s: called from a %s module", name, host.Kind())
		}

		native, err := s.toNative(arg, thread.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		resolved, err := host.Inline(module.FromNative(native))
		if err != nil {
			return nil, err
		}
		return toStarlark(resolved)
	})
}
