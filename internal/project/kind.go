package project

import "fmt"

// Kind selects which API contract a module implements.
type Kind string

const (
	// KindConfig is a project configuration module (sky-config).
	KindConfig Kind = "config"
	// KindNode is a build-time hooks module (sky-node).
	KindNode Kind = "node"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindConfig, KindNode:
		return true
	}
	return false
}

// UsesPlugins reports whether modules of this kind declare a plugin list.
func (k Kind) UsesPlugins() bool {
	return k == KindConfig
}

// SourceRequest returns the conventional extension-less request for the
// module of this kind, relative to a project root.
func (k Kind) SourceRequest() string {
	return "./sky-" + string(k)
}

// AllKinds returns all defined kinds.
func AllKinds() []Kind {
	return []Kind{KindConfig, KindNode}
}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
