package project

import (
	"fmt"
	"sync"
)

// OptionResolveImmediate is the option name controlling whether a deferred
// configuration function is invoked during resolution.
const OptionResolveImmediate = "resolveImmediate"

// Options are the per-kind API options of a project.
type Options struct {
	// ResolveImmediate invokes deferred configuration functions during
	// resolution and finalizes the project afterwards.
	ResolveImmediate bool
}

// DefaultOptions returns the options a project starts with.
func DefaultOptions() Options {
	return Options{ResolveImmediate: true}
}

// set applies a named option.
func (o *Options) set(name string, value any) error {
	switch name {
	case OptionResolveImmediate:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s must be a bool, got %T", ErrInvalidOption, name, value)
		}
		o.ResolveImmediate = b
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
}

// lineage is the state shared by every per-kind context of one project.
type lineage struct {
	meta Meta

	mu      sync.Mutex
	options map[Kind]Options
}

func newLineage(meta Meta) *lineage {
	return &lineage{meta: meta, options: make(map[Kind]Options)}
}

func (l *lineage) apiOptions(kind Kind) Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	if opts, ok := l.options[kind]; ok {
		return opts
	}
	return DefaultOptions()
}

func (l *lineage) setAPIOption(kind Kind, name string, value any) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	opts, ok := l.options[kind]
	if !ok {
		opts = DefaultOptions()
	}
	if err := opts.set(name, value); err != nil {
		return err
	}
	l.options[kind] = opts
	return nil
}
