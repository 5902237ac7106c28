package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the top-level shape of a resource registry YAML file.
type document struct {
	Resources []ResourceConfig `yaml:"resources"`
}

// Load reads and parses a YAML resource registry file at path, validates
// every entry, and returns a ready-to-use Registry. The document is parsed
// into an immutable Table and published in one step — there is no window
// where a caller can observe a partially-built registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}

	table, err := newTable(doc.Resources)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", path, err)
	}

	return New(table), nil
}

// LoadBytes is Load without a file read, for embedding a default
// configuration or loading from a non-filesystem source.
func LoadBytes(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse: %w", err)
	}

	table, err := newTable(doc.Resources)
	if err != nil {
		return nil, err
	}

	return New(table), nil
}

// ReloadFromFile re-reads path and atomically republishes the Registry's Table, per
// spec section 9: configurations are never partially updated at runtime.
func (r *Registry) ReloadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("registry: read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("registry: parse %s: %w", path, err)
	}

	return r.Reload(doc.Resources)
}
