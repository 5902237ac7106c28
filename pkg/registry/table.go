package registry

import "sync/atomic"

// Table is an immutable snapshot of every resource type's configuration.
// Once built it is never mutated; reconfiguring the registry means
// building a new Table and swapping it into a Registry atomically.
type Table struct {
	configs map[string]ResourceConfig
}

// newTable validates and indexes configs, rejecting duplicates.
func newTable(configs []ResourceConfig) (*Table, error) {
	indexed := make(map[string]ResourceConfig, len(configs))
	for _, c := range configs {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if _, exists := indexed[c.ResourceType]; exists {
			return nil, ErrDuplicateResourceType
		}
		indexed[c.ResourceType] = c
	}
	return &Table{configs: indexed}, nil
}

// Get returns the configuration for resourceType, or ErrUnknownResourceType.
func (t *Table) Get(resourceType string) (ResourceConfig, error) {
	c, ok := t.configs[resourceType]
	if !ok {
		return ResourceConfig{}, ErrUnknownResourceType
	}
	return c, nil
}

// ResourceTypes returns every configured resource type name, unordered.
func (t *Table) ResourceTypes() []string {
	types := make([]string, 0, len(t.configs))
	for rt := range t.configs {
		types = append(types, rt)
	}
	return types
}

// Registry holds the process-wide, atomically swappable Resource Registry.
// Reads never block a concurrent Reload; a reader that obtained a *Table via
// Current always sees an internally consistent snapshot, per spec section 9:
// "Resource Registry: read-only after load; if reconfigured, the whole table
// is swapped atomically, not mutated in place."
type Registry struct {
	current atomic.Pointer[Table]
}

// New builds a Registry from an already-validated Table.
func New(table *Table) *Registry {
	r := &Registry{}
	r.current.Store(table)
	return r
}

// Current returns the live Table. Safe for concurrent use with Reload.
func (r *Registry) Current() *Table {
	return r.current.Load()
}

// Reload atomically replaces the live Table with a newly built one,
// constructed from configs. Existing holders of the previous *Table
// continue to see a consistent (now-stale) snapshot; new callers to
// Current see the replacement.
func (r *Registry) Reload(configs []ResourceConfig) error {
	table, err := newTable(configs)
	if err != nil {
		return err
	}
	r.current.Store(table)
	return nil
}
