package selectors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads a complete catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}
	return New(def)
}

// LoadOrDefault loads path when set and falls back to the built-in catalog
// otherwise.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Marshal renders the catalog as YAML.
func Marshal(c *Catalog) ([]byte, error) {
	data, err := yaml.Marshal(c.Definition())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selectors: %w", err)
	}
	return data, nil
}
