// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package symbols maps abstract component types to concrete renderer
// classes of the diagrams icon library.
//
// Two data sources are embedded in the binary:
//
//   - the static registry (registry_*.yaml): hand-maintained hints mapping
//     type ids to (category, class) plus category-to-module paths,
//   - the generated symbol tables (table_*.yaml): a per-module snapshot of
//     every exported class in the installed library, produced by the
//     gen-symbols tool.
//
// The registry is a hint source only. The generated tables are the ground
// truth for what the installation actually exposes; lookups always succeed
// against them even when a registry mapping is stale.
package symbols

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

//go:embed registry_aws.yaml
var registryAWS []byte

//go:embed registry_azure.yaml
var registryAzure []byte

//go:embed registry_gcp.yaml
var registryGCP []byte

// NodeHint is a registry mapping for one type id.
type NodeHint struct {
	Category string `yaml:"category"`
	Class    string `yaml:"class"`
}

// providerCatalog is the parsed form of one registry file.
type providerCatalog struct {
	Provider  string              `yaml:"provider"`
	Modules   map[string]string   `yaml:"modules"`
	Nodes     map[string]NodeHint `yaml:"nodes"`
	Ambiguous []string            `yaml:"ambiguous"`
	Keywords  map[string][]string `yaml:"keywords"`

	typeIDs []string // sorted cache
}

// Registry exposes the static per-provider catalogs. Immutable after
// LoadRegistry; safe for concurrent reads.
type Registry struct {
	catalogs map[datatypes.Provider]*providerCatalog
}

// LoadRegistry parses the embedded catalogs. Called once at startup;
// a parse failure is a build defect, not a runtime condition.
func LoadRegistry() (*Registry, error) {
	raw := map[datatypes.Provider][]byte{
		datatypes.ProviderAWS:   registryAWS,
		datatypes.ProviderAzure: registryAzure,
		datatypes.ProviderGCP:   registryGCP,
	}
	r := &Registry{catalogs: make(map[datatypes.Provider]*providerCatalog, len(raw))}
	for provider, data := range raw {
		var cat providerCatalog
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("parsing %s registry: %w", provider, err)
		}
		if cat.Provider != string(provider) {
			return nil, fmt.Errorf("registry file for %s declares provider %q", provider, cat.Provider)
		}
		cat.typeIDs = make([]string, 0, len(cat.Nodes))
		for id := range cat.Nodes {
			cat.typeIDs = append(cat.typeIDs, id)
		}
		sort.Strings(cat.typeIDs)
		r.catalogs[provider] = &cat
	}
	return r, nil
}

// ModuleFor returns the module path registered for a category.
func (r *Registry) ModuleFor(provider datatypes.Provider, category string) (string, bool) {
	cat, ok := r.catalogs[provider]
	if !ok {
		return "", false
	}
	m, ok := cat.Modules[category]
	return m, ok
}

// Modules returns all category-to-module pairs for a provider, with
// categories sorted for deterministic iteration.
func (r *Registry) Modules(provider datatypes.Provider) map[string]string {
	cat, ok := r.catalogs[provider]
	if !ok {
		return nil
	}
	return cat.Modules
}

// Categories returns the provider's categories in sorted order.
func (r *Registry) Categories(provider datatypes.Provider) []string {
	cat, ok := r.catalogs[provider]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cat.Modules))
	for c := range cat.Modules {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Mapping returns the registry hint for a type id, if one exists.
func (r *Registry) Mapping(provider datatypes.Provider, typeID string) (NodeHint, bool) {
	cat, ok := r.catalogs[provider]
	if !ok {
		return NodeHint{}, false
	}
	hint, ok := cat.Nodes[typeID]
	return hint, ok
}

// AllTypeIDs returns the provider's known type ids in sorted order.
func (r *Registry) AllTypeIDs(provider datatypes.Provider) []string {
	cat, ok := r.catalogs[provider]
	if !ok {
		return nil
	}
	return cat.typeIDs
}

// IsAmbiguous reports whether a type id needs contextual resolution
// (e.g. "subnet", "database", "function").
func (r *Registry) IsAmbiguous(provider datatypes.Provider, typeID string) bool {
	cat, ok := r.catalogs[provider]
	if !ok {
		return false
	}
	return slices.Contains(cat.Ambiguous, typeID)
}

// Keywords returns the descriptive token index for a provider, used for
// keyword-overlap scoring during contextual resolution.
func (r *Registry) Keywords(provider datatypes.Provider) map[string][]string {
	cat, ok := r.catalogs[provider]
	if !ok {
		return nil
	}
	return cat.Keywords
}
