// Package module defines the values that flow through API module resolution.
//
// A transpiled source yields an Export. Unwrapping an Export yields a Value,
// which is one of:
//   - absent: the module produced nothing (None, empty document)
//   - object: a mapping of fields, possibly carrying a "plugins" list
//   - func: a deferred configuration function that must be invoked
//   - other: any other data (a bare string, number or list)
package module

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Form discriminates the shape of a Value.
type Form int

const (
	FormAbsent Form = iota
	FormObject
	FormFunc
	FormOther
)

// String returns the form name.
func (f Form) String() string {
	switch f {
	case FormAbsent:
		return "absent"
	case FormObject:
		return "object"
	case FormFunc:
		return "func"
	case FormOther:
		return "other"
	default:
		return fmt.Sprintf("Form(%d)", int(f))
	}
}

// Value is a transpiled or resolved API module.
// The zero Value is absent.
type Value struct {
	form  Form
	obj   *Object
	fn    ConfigFunc
	other any
}

// Absent returns the absent value.
func Absent() Value {
	return Value{}
}

// ObjectValue wraps an object. A nil object is absent.
func ObjectValue(obj *Object) Value {
	if obj == nil {
		return Value{}
	}
	return Value{form: FormObject, obj: obj}
}

// FuncValue wraps a deferred configuration function. A nil function is absent.
func FuncValue(fn ConfigFunc) Value {
	if fn == nil {
		return Value{}
	}
	return Value{form: FormFunc, fn: fn}
}

// FromNative classifies a native Go value produced by a backend.
// Maps with string keys become objects and ConfigFuncs become funcs.
func FromNative(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case *Object:
		return ObjectValue(x)
	case map[string]any:
		return ObjectValue(NewObject(x))
	case ConfigFunc:
		return FuncValue(x)
	default:
		return Value{form: FormOther, other: Normalize(v)}
	}
}

// Form reports the shape of the value.
func (v Value) Form() Form { return v.form }

// IsAbsent reports whether the value is absent.
func (v Value) IsAbsent() bool { return v.form == FormAbsent }

// Object returns the object and true if the value is an object.
func (v Value) Object() (*Object, bool) {
	return v.obj, v.form == FormObject
}

// Func returns the deferred configuration function and true if the value is one.
func (v Value) Func() (ConfigFunc, bool) {
	return v.fn, v.form == FormFunc
}

// Native returns the value in its native Go form: nil, map[string]any,
// ConfigFunc or the other data.
func (v Value) Native() any {
	switch v.form {
	case FormObject:
		return v.obj.Fields()
	case FormFunc:
		return v.fn
	case FormOther:
		return v.other
	default:
		return nil
	}
}

// MarshalJSON encodes the native form. Functions encode as a descriptive string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.form == FormFunc {
		return marshalJSON(describeFunc(v.fn))
	}
	return marshalJSON(jsonSafe(v.Native()))
}

// marshalJSON is json.Marshal without HTML escaping, so function
// descriptions keep their angle brackets.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func describeFunc(fn ConfigFunc) string {
	return fmt.Sprintf("<function %s>", fn.Name())
}
