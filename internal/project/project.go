// Package project holds the per-artifact-kind state of sky projects.
//
// A project is a directory with a sky-config module and, optionally, a
// sky-node companion module. Each (root, kind) pair has one canonical
// Project context owned by a Registry. Contexts of the same project share a
// lineage, which carries the per-kind API options.
package project

import (
	"fmt"
	"maps"
	"sync"

	"github.com/albertocavalcante/skyapi/internal/module"
)

// Meta identifies a logical project shared by all of its per-kind contexts.
type Meta struct {
	// Name is a display name (the plugin name for plugin projects).
	Name string
	// Root is the project directory.
	Root string
}

// Descriptor names one per-kind context of a project.
type Descriptor struct {
	Kind Kind
	Meta Meta
}

// Project is the resolution state of one artifact kind of a project.
type Project struct {
	registry *Registry
	lineage  *lineage
	kind     Kind
	debug    Debug

	mu            sync.Mutex
	state         State
	module        module.Value
	resolvedPath  string
	pluginOptions map[string]any
}

// Kind returns the artifact kind. It never changes.
func (p *Project) Kind() Kind { return p.kind }

// Meta returns the project identity.
func (p *Project) Meta() Meta { return p.lineage.meta }

// Name returns the project name.
func (p *Project) Name() string { return p.lineage.meta.Name }

// Root returns the project root directory.
func (p *Project) Root() string { return p.lineage.meta.Root }

// Debug returns the project's logging handle.
func (p *Project) Debug() Debug { return p.debug }

// Registry returns the owning registry.
func (p *Project) Registry() *Registry { return p.registry }

// State returns the current resolution state.
func (p *Project) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Finalized reports whether the cached module is authoritative.
func (p *Project) Finalized() bool {
	return p.State() == StateFinalized
}

// Module returns the cached module. It is only meaningful once finalized.
func (p *Project) Module() module.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.module
}

// ResolvedPath returns the module file this context resolved to.
func (p *Project) ResolvedPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolvedPath
}

// SetResolvedPath records the module file this context resolves to.
func (p *Project) SetResolvedPath(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolvedPath = path
}

// PluginOptions returns the options a parent declared for this project.
func (p *Project) PluginOptions() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.pluginOptions)
}

// SetPluginOptions records the options a parent declared for this project.
func (p *Project) SetPluginOptions(opts map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pluginOptions = maps.Clone(opts)
}

// Begin moves the context into resolution.
// It fails with ErrCycle if the context is already being resolved.
func (p *Project) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateResolving:
		return fmt.Errorf("%w: %s module of %s", ErrCycle, p.kind, p.lineage.meta.Root)
	case StateFinalized:
		return fmt.Errorf("%w: %s module of %s", ErrFinalized, p.kind, p.lineage.meta.Root)
	}
	p.state = StateResolving
	return nil
}

// End settles a resolution started by Begin. A context that was finalized
// meanwhile stays finalized.
func (p *Project) End(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateResolving {
		return
	}
	if err != nil {
		p.state = StateUnresolved
		return
	}
	p.state = StatePending
}

// FinalizeProject caches v as the authoritative module. It reports false,
// and changes nothing, if the context was already finalized.
func (p *Project) FinalizeProject(v module.Value) bool {
	p.mu.Lock()
	if p.state == StateFinalized {
		p.mu.Unlock()
		return false
	}
	p.module = v
	p.state = StateFinalized
	p.mu.Unlock()

	p.registry.adopt(p)
	p.debug.Log("project finalized", "path", p.ResolvedPath(), "form", v.Form().String())
	return true
}

// Clone derives a context of another kind sharing this project's lineage.
// The clone becomes canonical only if no canonical context exists yet.
func (p *Project) Clone(kind Kind) *Project {
	clone := p.registry.newProject(p.lineage, kind)
	p.registry.adopt(clone)
	return clone
}

// APIOptions returns the options for a kind of this project.
func (p *Project) APIOptions(kind Kind) Options {
	return p.lineage.apiOptions(kind)
}

// SetAPIOption sets a named option for a kind of this project. The change is
// visible to every context of the project.
func (p *Project) SetAPIOption(kind Kind, name string, value any) error {
	return p.lineage.setAPIOption(kind, name, value)
}

// GetProject returns the canonical context for d. When there is none it
// creates one if create is set, and otherwise returns fallback.
func (p *Project) GetProject(d Descriptor, create bool, fallback *Project, debug Debug) *Project {
	if found, ok := p.registry.Lookup(d); ok {
		return found
	}
	if !create {
		debug.Log("no canonical project", "root", d.Meta.Root, "kind", d.Kind)
		return fallback
	}
	return p.registry.Open(d)
}

// ResolveConfigFn invokes a deferred configuration function for this context.
func (p *Project) ResolveConfigFn(fn module.ConfigFunc) (module.Value, error) {
	args := module.CallArgs{
		Root:    p.Root(),
		Name:    p.Name(),
		Kind:    p.kind.String(),
		Path:    p.ResolvedPath(),
		Options: p.PluginOptions(),
	}
	p.debug.Log("invoking config function", "func", fn.Name())
	return fn.Call(args)
}
