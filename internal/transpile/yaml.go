package transpile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/skyapi/internal/module"
)

// YAML evaluates .yaml, .yml and .json modules. A mapping document exports
// like a TOML module. An empty document is an absent default export, and
// any other document is exported as the default value.
type YAML struct{}

// Transpile implements Backend.
func (YAML) Transpile(path string, data []byte, _ Host) (module.Export, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return module.Export{}, fmt.Errorf("parsing YAML module %s: %w", path, err)
	}

	switch x := module.Normalize(doc).(type) {
	case nil:
		return module.Default(module.Absent()), nil
	case map[string]any:
		return module.FromFields(x), nil
	default:
		return module.Default(module.FromNative(x)), nil
	}
}
