package project

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
)

type key struct {
	root string
	kind Kind
}

// Registry owns the project contexts of one resolution run.
type Registry struct {
	debug Debug

	mu       sync.Mutex
	lineages map[string]*lineage
	projects map[key]*Project
}

// NewRegistry creates an empty registry logging to logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		debug:    NewDebug(logger),
		lineages: make(map[string]*lineage),
		projects: make(map[key]*Project),
	}
}

// Open returns the canonical context for d, creating it if needed.
func (r *Registry) Open(d Descriptor) *Project {
	meta := d.Meta
	meta.Root = filepath.Clean(meta.Root)

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.projects[key{meta.Root, d.Kind}]; ok {
		return p
	}
	l := r.lineageLocked(meta)
	p := r.newProjectLocked(l, d.Kind)
	r.projects[key{meta.Root, d.Kind}] = p
	return p
}

// Lookup returns the canonical context for d, if any.
func (r *Registry) Lookup(d Descriptor) (*Project, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[key{filepath.Clean(d.Meta.Root), d.Kind}]
	return p, ok
}

// Projects returns the canonical contexts sorted by root, then kind.
func (r *Registry) Projects() []*Project {
	r.mu.Lock()
	out := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Root() != out[j].Root() {
			return out[i].Root() < out[j].Root()
		}
		return out[i].kind < out[j].kind
	})
	return out
}

// lineageLocked returns the shared lineage for a project root.
// The first Meta registered for a root names the lineage.
func (r *Registry) lineageLocked(meta Meta) *lineage {
	if l, ok := r.lineages[meta.Root]; ok {
		return l
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(meta.Root)
	}
	l := newLineage(meta)
	r.lineages[meta.Root] = l
	return l
}

func (r *Registry) newProject(l *lineage, kind Kind) *Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newProjectLocked(l, kind)
}

func (r *Registry) newProjectLocked(l *lineage, kind Kind) *Project {
	logger := r.debug.Logger().With("project", l.meta.Name, "kind", string(kind))
	return &Project{
		registry: r,
		lineage:  l,
		kind:     kind,
		debug:    NewDebug(logger),
	}
}

// adopt makes p canonical for its (root, kind) unless another context is.
func (r *Registry) adopt(p *Project) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{p.lineage.meta.Root, p.kind}
	if existing, ok := r.projects[k]; ok {
		return existing == p
	}
	r.projects[k] = p
	return true
}
