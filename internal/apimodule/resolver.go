// Package apimodule resolves the API modules of sky projects.
//
// Resolving a config module pre-processes its sky-node companion, invokes
// deferred configuration functions, resolves the plugins it declares and,
// once per Run, appends skyapi's own plugin to its plugin list. Results are
// cached on the project context when it is finalized.
package apimodule

import (
	"fmt"

	"github.com/albertocavalcante/skyapi/internal/locate"
	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/plugins"
	"github.com/albertocavalcante/skyapi/internal/project"
	"github.com/albertocavalcante/skyapi/internal/transpile"
)

// CompanionNodePathOption is the own plugin option naming the companion
// node module.
const CompanionNodePathOption = "companionNodePath"

// PluginProcessor resolves the plugin list of a config module.
type PluginProcessor interface {
	Process(owner *project.Project, resolve plugins.ResolveFunc, list any) ([]plugins.Declaration, error)
}

// Options configure a Resolver.
type Options struct {
	// OwnPlugin is the location of skyapi's own plugin.
	OwnPlugin string
	// CompanionRequest locates a config module's companion, relative to the
	// project root. Empty means the node kind's conventional request.
	CompanionRequest string
	// Extensions are tried when locating the companion. Nil means
	// locate.DefaultExtensions.
	Extensions []string
}

// Resolver resolves API modules.
type Resolver struct {
	transpiler transpile.Transpiler
	plugins    PluginProcessor
	run        *Run
	opts       Options
}

// New creates a resolver for one run.
func New(t transpile.Transpiler, pp PluginProcessor, run *Run, opts Options) *Resolver {
	if opts.CompanionRequest == "" {
		opts.CompanionRequest = project.KindNode.SourceRequest()
	}
	if run == nil {
		run = NewRun()
	}
	return &Resolver{transpiler: t, plugins: pp, run: run, opts: opts}
}

// Run returns the run this resolver belongs to.
func (r *Resolver) Run() *Run { return r.run }

// ResolvePath resolves the module file at path for p, recursing into plugins.
func (r *Resolver) ResolvePath(path string, p *project.Project) (module.Value, error) {
	return r.Resolve(module.PathSource(path), p, true)
}

// Resolve resolves src as the API module of p. When recurse is set, the
// plugins a config module declares are resolved too.
//
// A finalized project returns its cached module without transpiling. A
// project entered again while it is being resolved fails with
// project.ErrCycle. Errors from the transpiler, from configuration
// functions and from the plugin processor are returned as is, and leave p
// unfinalized.
func (r *Resolver) Resolve(src module.Source, p *project.Project, recurse bool) (module.Value, error) {
	return r.resolve(src, p, recurse, false)
}

// resolve implements Resolve. Inline resolutions run inside the
// transpilation of p's own module, so p is already marked as resolving.
func (r *Resolver) resolve(src module.Source, p *project.Project, recurse, inline bool) (_ module.Value, err error) {
	debug := p.Debug().New("apimodule")

	if p.Finalized() {
		debug.Log("project already finalized", "name", p.Name())
		return p.Module(), nil
	}

	if !inline {
		if err := p.Begin(); err != nil {
			return module.Value{}, err
		}
		defer func() { p.End(err) }()
	}
	if path := src.Path(); path != "" {
		p.SetResolvedPath(path)
	}

	resolveImmediate := p.APIOptions(p.Kind()).ResolveImmediate

	exp, err := r.transpiler.Transpile(src, &host{r: r, p: p, recurse: recurse})
	if err != nil {
		return module.Value{}, err
	}
	value := exp.Unwrap()

	// use_config and use_node finalize the project while it is transpiled.
	if p.Finalized() {
		debug.Log("project finalized during transpile", "name", p.Name())
		return p.Module(), nil
	}

	insertPlugin := p.Kind() == project.KindConfig && r.run.claimInsertion()

	var companion *project.Project
	var companionValue module.Value
	if p.Kind() == project.KindConfig {
		if nodePath, ok := locate.Resolve(p.Root(), r.opts.CompanionRequest, r.opts.Extensions); ok {
			companion, companionValue, err = r.preprocessCompanion(p, nodePath)
			if err != nil {
				return module.Value{}, err
			}
		}
	}

	if value.IsAbsent() {
		value = module.ObjectValue(module.NewObject(nil))
	}

	if fn, ok := configFunc(p.Kind(), value); ok && resolveImmediate {
		value, err = p.ResolveConfigFn(fn)
		if err != nil {
			return module.Value{}, err
		}
	}

	if companion != nil && !companion.Finalized() {
		if fn, ok := configFunc(companion.Kind(), companionValue); ok {
			debug.Log("finalizing companion", "path", companion.ResolvedPath())
			resolved, err := companion.ResolveConfigFn(fn)
			if err != nil {
				return module.Value{}, err
			}
			companion.FinalizeProject(resolved)
		}
	}

	obj, holder := pluginHolder(p.Kind(), value)
	if insertPlugin && !holder {
		debug.Log("own plugin not inserted", "form", value.Form().String())
	}
	if holder {
		if recurse {
			debug.Log("resolving plugins")
			raw, declared := obj.Plugins()
			decls, err := r.plugins.Process(p, r.Resolve, raw)
			if err != nil {
				return module.Value{}, err
			}
			if declared || len(decls) > 0 {
				obj.SetPlugins(plugins.Maps(decls))
			}
		}
		if insertPlugin {
			companionPath := ""
			if companion != nil {
				companionPath = companion.ResolvedPath()
			}
			if !obj.AppendPlugin(ownPlugin(r.opts.OwnPlugin, companionPath)) {
				raw, _ := obj.Plugins()
				return module.Value{}, fmt.Errorf("%w: plugins must be a list, got %T", plugins.ErrMalformedDeclaration, raw)
			}
		}
	}

	if resolveImmediate {
		debug.Log("finalizing project", "path", p.ResolvedPath())
		p.FinalizeProject(value)
	}
	return value, nil
}

// preprocessCompanion resolves the companion node module of a config
// project without invoking its configuration function, and returns the
// canonical node context along with the unresolved value.
func (r *Resolver) preprocessCompanion(p *project.Project, nodePath string) (*project.Project, module.Value, error) {
	if err := p.SetAPIOption(project.KindNode, project.OptionResolveImmediate, false); err != nil {
		return nil, module.Value{}, err
	}
	defer func() {
		if err := p.SetAPIOption(project.KindNode, project.OptionResolveImmediate, true); err != nil {
			p.Debug().Log("restoring companion option failed", "err", err)
		}
	}()

	clone := p.Clone(project.KindNode)
	value, err := r.resolve(module.PathSource(nodePath), clone, true, false)
	if err != nil {
		return nil, module.Value{}, err
	}

	canonical := p.GetProject(project.Descriptor{Kind: project.KindNode, Meta: p.Meta()}, false, clone, clone.Debug())
	return canonical, value, nil
}

func ownPlugin(location, companionPath string) map[string]any {
	return map[string]any{
		"resolve": location,
		"options": map[string]any{CompanionNodePathOption: companionPath},
	}
}

// configFunc reports whether v is a deferred configuration function for
// modules of kind.
func configFunc(kind project.Kind, v module.Value) (module.ConfigFunc, bool) {
	if !kind.Valid() {
		return nil, false
	}
	return v.Func()
}

// pluginHolder reports whether v is a module of kind that carries a plugin
// list.
func pluginHolder(kind project.Kind, v module.Value) (*module.Object, bool) {
	if !kind.UsesPlugins() {
		return nil, false
	}
	return v.Object()
}

// host lets module code resolve values inline for the project being
// transpiled.
type host struct {
	r       *Resolver
	p       *project.Project
	recurse bool
}

func (h *host) Kind() project.Kind { return h.p.Kind() }

func (h *host) Inline(v module.Value) (module.Value, error) {
	return h.r.resolve(module.LoadedSource(v), h.p, h.recurse, true)
}
