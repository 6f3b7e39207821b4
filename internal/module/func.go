package module

// CallArgs is what a deferred configuration function receives.
type CallArgs struct {
	// Root is the project root directory.
	Root string
	// Name is the project name.
	Name string
	// Kind is the artifact kind being configured.
	Kind string
	// Path is the resolved module path, if known.
	Path string
	// Options are the plugin options declared for this project by its parent.
	Options map[string]any
}

// ConfigFunc is a deferred configuration function.
type ConfigFunc interface {
	// Name identifies the function in logs and output.
	Name() string
	// Call invokes the function. Errors raised by user code are returned as is.
	Call(args CallArgs) (Value, error)
}

// GoFunc adapts a Go function to ConfigFunc.
type GoFunc struct {
	FuncName string
	Fn       func(CallArgs) (Value, error)
}

// Name implements ConfigFunc.
func (f GoFunc) Name() string { return f.FuncName }

// Call implements ConfigFunc.
func (f GoFunc) Call(args CallArgs) (Value, error) {
	return f.Fn(args)
}
