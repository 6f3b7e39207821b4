package transpile

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/skyapi/internal/module"
)

// TOML evaluates .toml modules. Top-level keys are named exports, unless
// there is a "default" key.
type TOML struct{}

// Transpile implements Backend.
func (TOML) Transpile(path string, data []byte, _ Host) (module.Export, error) {
	var fields map[string]any
	if err := toml.Unmarshal(data, &fields); err != nil {
		return module.Export{}, fmt.Errorf("parsing TOML module %s: %w", path, err)
	}
	return module.FromFields(fields), nil
}
