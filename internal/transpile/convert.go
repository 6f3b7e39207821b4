package transpile

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/albertocavalcante/skyapi/internal/module"
)

// toNative converts a Starlark value into module data. Callables become
// deferred configuration functions bound to the module at path.
func (s *Starlark) toNative(v starlark.Value, path string) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return x.String(), nil
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings, got %s", item[0].Type())
			}
			val, err := s.toNative(item[1], path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = val
		}
		return out, nil
	case *starlarkstruct.Struct:
		out := make(map[string]any)
		for _, name := range x.AttrNames() {
			attr, err := x.Attr(name)
			if err != nil {
				return nil, err
			}
			val, err := s.toNative(attr, path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[name] = val
		}
		return out, nil
	case *starlark.List:
		return s.sequenceToNative(x, path)
	case starlark.Tuple:
		return s.sequenceToNative(x, path)
	case *starlark.Set:
		return s.sequenceToNative(x, path)
	case *inlineFunc:
		return x.fn, nil
	case starlark.Callable:
		return &starlarkFunc{s: s, fn: x, path: path}, nil
	default:
		return nil, fmt.Errorf("cannot convert %s value", v.Type())
	}
}

func (s *Starlark) sequenceToNative(seq starlark.Iterable, path string) (any, error) {
	iter := seq.Iterate()
	defer iter.Done()

	out := make([]any, 0)
	var item starlark.Value
	for i := 0; iter.Next(&item); i++ {
		val, err := s.toNative(item, path)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, val)
	}
	return out, nil
}

// toStarlark converts module data back into a Starlark value.
func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case module.Value:
		return toStarlark(x.Native())
	case *module.Object:
		return toStarlark(x.Fields())
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			val, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = val
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		d := starlark.NewDict(len(x))
		for _, k := range keys {
			val, err := toStarlark(x[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), val); err != nil {
				return nil, err
			}
		}
		return d, nil
	case *starlarkFunc:
		return x.fn, nil
	case module.ConfigFunc:
		return &inlineFunc{fn: x}, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a Starlark value", v)
	}
}

// projectStruct builds the argument passed to configuration functions.
func projectStruct(args module.CallArgs) (starlark.Value, error) {
	opts, err := toStarlark(map[string]any(args.Options))
	if err != nil {
		return nil, fmt.Errorf("plugin options: %w", err)
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"root":    starlark.String(args.Root),
		"name":    starlark.String(args.Name),
		"kind":    starlark.String(args.Kind),
		"path":    starlark.String(args.Path),
		"options": opts,
	}), nil
}

// inlineFunc exposes a Go configuration function to Starlark code.
type inlineFunc struct {
	fn module.ConfigFunc
}

var _ starlark.Callable = (*inlineFunc)(nil)

func (f *inlineFunc) String() string        { return fmt.Sprintf("<function %s>", f.fn.Name()) }
func (f *inlineFunc) Type() string          { return "function" }
func (f *inlineFunc) Freeze()               {}
func (f *inlineFunc) Truth() starlark.Bool  { return starlark.True }
func (f *inlineFunc) Name() string          { return f.fn.Name() }
func (f *inlineFunc) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: function") }

func (f *inlineFunc) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected arguments", f.fn.Name())
	}
	v, err := f.fn.Call(module.CallArgs{})
	if err != nil {
		return nil, err
	}
	return toStarlark(v)
}
