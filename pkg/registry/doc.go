// Package registry implements the Resource Registry (C1): the in-memory,
// effectively immutable table of per-resource-type configuration consulted
// by the search-param validator (C5), storage router (C6), and resource
// service (C7).
//
// A Table is built once via Load (or LoadBytes) from a YAML document and
// never mutated; Reload constructs a new Table and atomically swaps it into
// the Registry, so concurrent readers never observe a partially-applied
// reconfiguration.
//
// Example:
//
//	reg, err := registry.Load("config/resources.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg, err := reg.Current().Get("Patient")
package registry
