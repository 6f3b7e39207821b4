package plugins

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/albertocavalcante/skyapi/internal/locate"
	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/project"
)

// ErrMalformedDeclaration is returned for plugin list entries that are
// neither a name nor a {resolve, options} mapping.
var ErrMalformedDeclaration = errors.New("malformed plugin declaration")

// ResolveFunc resolves the API module at src for a project.
type ResolveFunc func(src module.Source, p *project.Project, recurse bool) (module.Value, error)

// Finder looks up installed plugins.
type Finder interface {
	FindPlugin(name string) (*Plugin, error)
}

// Processor resolves the plugin lists of config modules.
//
// Local plugins are directories named by path, or by name under the
// project's plugins directory. Installed plugins come from the store. Each
// plugin directory has its API modules resolved once per Processor; the
// declarations naming it keep their own options.
type Processor struct {
	store Finder
	exts  []string

	mu   sync.Mutex
	seen map[string]bool
}

// NewProcessor creates a processor. store may be nil. exts lists the module
// extensions to look for, nil meaning locate.DefaultExtensions.
func NewProcessor(store Finder, exts []string) *Processor {
	return &Processor{store: store, exts: exts, seen: make(map[string]bool)}
}

// Process normalizes a raw plugin list and resolves every local or installed
// plugin it declares, preserving order. An absent list yields an empty one.
func (p *Processor) Process(owner *project.Project, resolve ResolveFunc, list any) ([]Declaration, error) {
	debug := owner.Debug().New("plugins")

	var entries []any
	switch x := list.(type) {
	case nil:
	case []any:
		entries = x
	default:
		return nil, fmt.Errorf("%w: plugins must be a list, got %T", ErrMalformedDeclaration, list)
	}

	out := make([]Declaration, 0, len(entries))
	for i, entry := range entries {
		decl, err := normalize(entry)
		if err != nil {
			return nil, fmt.Errorf("plugins[%d]: %w", i, err)
		}

		dir, name, ok, err := p.pluginDir(owner, decl.Resolve)
		if err != nil {
			return nil, err
		}
		if ok {
			debug.Log("resolving plugin", "plugin", decl.Resolve, "dir", dir)
			if err := p.resolveDir(owner, resolve, dir, name, decl.Options); err != nil {
				return nil, err
			}
			decl.Resolve = dir
		}
		out = append(out, decl)
	}
	return out, nil
}

// pluginDir finds the directory a request refers to, if it is local or
// installed.
func (p *Processor) pluginDir(owner *project.Project, request string) (dir, name string, ok bool, err error) {
	if dir, ok := locate.PluginDir(owner.Root(), request); ok {
		name := request
		if locate.IsLocalRequest(request) {
			name = filepath.Base(dir)
		}
		return dir, name, true, nil
	}
	if p.store == nil || !IsValidName(request) {
		return "", "", false, nil
	}

	installed, err := p.store.FindPlugin(request)
	if err != nil {
		return "", "", false, fmt.Errorf("plugin %q: %w", request, err)
	}
	if installed == nil {
		return "", "", false, nil
	}
	return installed.Path, installed.Name, true, nil
}

// resolveDir resolves a plugin directory's config module, or its node module
// when it has no config module.
func (p *Processor) resolveDir(owner *project.Project, resolve ResolveFunc, dir, name string, opts map[string]any) error {
	meta := project.Meta{Name: name, Root: dir}
	child := owner.GetProject(project.Descriptor{Kind: project.KindConfig, Meta: meta}, true, nil, owner.Debug())

	p.mu.Lock()
	seen := p.seen[dir]
	p.seen[dir] = true
	p.mu.Unlock()
	// A plugin still resolving is being declared from inside itself; let the
	// resolver report the cycle.
	if seen && child.State() != project.StateResolving {
		return nil
	}
	if !seen {
		child.SetPluginOptions(opts)
	}

	if path, ok := locate.Resolve(dir, project.KindConfig.SourceRequest(), p.exts); ok {
		_, err := resolve(module.PathSource(path), child, true)
		return err
	}

	node := owner.GetProject(project.Descriptor{Kind: project.KindNode, Meta: meta}, true, nil, owner.Debug())
	if path, ok := locate.Resolve(dir, project.KindNode.SourceRequest(), p.exts); ok {
		node.SetPluginOptions(opts)
		_, err := resolve(module.PathSource(path), node, true)
		return err
	}
	return nil
}

// normalize converts one plugin list entry into a declaration.
func normalize(entry any) (Declaration, error) {
	switch x := entry.(type) {
	case string:
		if x == "" {
			return Declaration{}, fmt.Errorf("%w: empty plugin name", ErrMalformedDeclaration)
		}
		return Declaration{Resolve: x, Options: map[string]any{}}, nil
	case Declaration:
		if x.Resolve == "" {
			return Declaration{}, fmt.Errorf("%w: missing resolve", ErrMalformedDeclaration)
		}
		if x.Options == nil {
			x.Options = map[string]any{}
		}
		return x, nil
	case map[string]any:
		resolve, ok := x["resolve"].(string)
		if !ok || resolve == "" {
			return Declaration{}, fmt.Errorf("%w: resolve must be a non-empty string", ErrMalformedDeclaration)
		}
		opts := map[string]any{}
		switch o := x["options"].(type) {
		case nil:
		case map[string]any:
			opts = o
		default:
			return Declaration{}, fmt.Errorf("%w: options of %q must be a mapping, got %T", ErrMalformedDeclaration, resolve, o)
		}
		return Declaration{Resolve: resolve, Options: opts}, nil
	default:
		return Declaration{}, fmt.Errorf("%w: unexpected %T", ErrMalformedDeclaration, entry)
	}
}
