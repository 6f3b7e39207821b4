package plugins

import (
	"fmt"
	"regexp"
)

var pluginNameRe = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

// ValidateName ensures a plugin name is safe to use as a store directory.
func ValidateName(name string) error {
	if !IsValidName(name) {
		return fmt.Errorf("invalid plugin name %q", name)
	}
	return nil
}

// IsValidName reports whether name could be an installed plugin.
func IsValidName(name string) bool {
	return pluginNameRe.MatchString(name)
}
