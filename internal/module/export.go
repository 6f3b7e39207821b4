package module

// ExportKind says how a transpiled module exposes its value.
type ExportKind int

const (
	// ExportNamed means the module's value is its object of named exports.
	ExportNamed ExportKind = iota
	// ExportDefault means the module exports a single default value.
	ExportDefault
)

// DefaultExport is the global/key name that marks a default export.
const DefaultExport = "default"

// Export is the result of transpiling a source.
type Export struct {
	Kind  ExportKind
	Value Value
}

// Default returns a default export of v.
func Default(v Value) Export {
	return Export{Kind: ExportDefault, Value: v}
}

// Named returns a named-exports export over obj.
func Named(obj *Object) Export {
	return Export{Kind: ExportNamed, Value: ObjectValue(obj)}
}

// FromFields builds an export from decoded top-level fields: a "default"
// field becomes the default export, otherwise the fields are named exports.
func FromFields(fields map[string]any) Export {
	if v, ok := fields[DefaultExport]; ok {
		return Default(FromNative(Normalize(v)))
	}
	return Named(NewObject(fields))
}

// Unwrap prefers the default export and otherwise returns the exports object.
func (e Export) Unwrap() Value {
	return e.Value
}

// Source is what the transpiler is asked to load: a file path or a value
// that is already loaded.
type Source struct {
	path   string
	value  Value
	loaded bool
}

// PathSource refers to a module file.
func PathSource(path string) Source {
	return Source{path: path}
}

// LoadedSource wraps a value that needs no transpiling.
func LoadedSource(v Value) Source {
	return Source{value: v, loaded: true}
}

// Path returns the file path, empty for loaded sources.
func (s Source) Path() string { return s.path }

// Loaded returns the value and true for loaded sources.
func (s Source) Loaded() (Value, bool) { return s.value, s.loaded }

// String describes the source for logs.
func (s Source) String() string {
	if s.loaded {
		return "<loaded " + s.value.Form().String() + ">"
	}
	return s.path
}
