package plugins

import (
	"maps"
	"time"
)

// Plugin describes an installed plugin. Installed plugins are directories
// holding their own sky-config and sky-node modules.
type Plugin struct {
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	InstalledAt time.Time `json:"installed_at,omitempty"`
	Path        string    `json:"path,omitempty"`
}

// Declaration is a resolved plugin list entry.
type Declaration struct {
	Resolve string         `json:"resolve"`
	Options map[string]any `json:"options"`
}

// Map returns the declaration in the shape modules use for plugin entries.
func (d Declaration) Map() map[string]any {
	opts := maps.Clone(d.Options)
	if opts == nil {
		opts = map[string]any{}
	}
	return map[string]any{
		"resolve": d.Resolve,
		"options": opts,
	}
}

// Maps converts declarations into a module plugin list.
func Maps(decls []Declaration) []any {
	out := make([]any, len(decls))
	for i, d := range decls {
		out[i] = d.Map()
	}
	return out
}
