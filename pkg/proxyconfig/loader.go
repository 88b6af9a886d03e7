package proxyconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadSection reads the named top-level section of a YAML configuration
// file. A missing file or missing section yields an empty configuration;
// the section is never required to exist.
func LoadSection(path, section string) (*Config, error) {
	if path == "" || section == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var tree map[string]yaml.Node
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	node, ok := tree[section]
	if !ok {
		return &Config{}, nil
	}

	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config section %q: %w", section, err)
	}

	return &cfg, nil
}
