package module

import (
	"fmt"
	"sort"
)

// PluginsField is the field holding a config module's plugin list.
const PluginsField = "plugins"

// Object is a module exports object or a config mapping.
type Object struct {
	fields map[string]any
}

// NewObject creates an object over the given fields. The map is normalized
// and owned by the object afterwards; a nil map yields an empty object.
func NewObject(fields map[string]any) *Object {
	obj := &Object{fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		obj.fields[k] = Normalize(v)
	}
	return obj
}

// Fields returns the underlying fields.
func (o *Object) Fields() map[string]any {
	return o.fields
}

// Get returns a field.
func (o *Object) Get(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// Set assigns a field.
func (o *Object) Set(name string, v any) {
	o.fields[name] = v
}

// Keys returns the field names in sorted order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Plugins returns the raw plugin list field, which may be absent or malformed.
func (o *Object) Plugins() (any, bool) {
	return o.Get(PluginsField)
}

// SetPlugins replaces the plugin list.
func (o *Object) SetPlugins(list []any) {
	o.fields[PluginsField] = list
}

// AppendPlugin appends one entry to the plugin list, creating it if absent.
// It reports false and leaves the field alone if plugins is not a list.
func (o *Object) AppendPlugin(entry any) bool {
	raw, ok := o.fields[PluginsField]
	if !ok || raw == nil {
		o.fields[PluginsField] = []any{entry}
		return true
	}
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	o.fields[PluginsField] = append(list, entry)
	return true
}

// MarshalJSON encodes the fields, describing nested functions as strings.
func (o *Object) MarshalJSON() ([]byte, error) {
	return marshalJSON(jsonSafe(o.fields))
}

func jsonSafe(v any) any {
	switch x := v.(type) {
	case ConfigFunc:
		return describeFunc(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonSafe(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonSafe(e)
		}
		return out
	default:
		return v
	}
}

// Normalize converts decoder-specific containers into map[string]any and
// []any so that every backend yields the same shapes.
func Normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case *Object:
		return x.fields
	default:
		return v
	}
}
