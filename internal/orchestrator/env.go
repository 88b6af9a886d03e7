package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatehost/gatehost/pkg/apphost"
)

// resolveEnvironment resolves declared environment values into a flat
// settings map. Values are awaited sequentially, so resolution order equals
// declaration order. Keys using a double-underscore section separator are
// rewritten to colon-separated hierarchical form.
func resolveEnvironment(ctx context.Context, decls []apphost.EnvDecl) (map[string]string, error) {
	settings := make(map[string]string, len(decls))

	for _, decl := range decls {
		var resolved string

		switch v := decl.Value.(type) {
		case string:
			resolved = v
		case apphost.ValueProvider:
			value, err := v.Value(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve environment value %q: %w", decl.Key, err)
			}
			resolved = value
		default:
			return nil, fmt.Errorf("%w: %q holds %T", ErrUnsupportedValueType, decl.Key, decl.Value)
		}

		settings[settingKey(decl.Key)] = resolved
	}

	return settings, nil
}

// settingKey rewrites an environment-variable key to the configuration
// system's hierarchical form.
func settingKey(key string) string {
	return strings.ReplaceAll(key, "__", ":")
}
