// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

//go:embed table_aws.yaml
var tableAWS []byte

//go:embed table_azure.yaml
var tableAzure []byte

//go:embed table_gcp.yaml
var tableGCP []byte

// symbolTable is the parsed form of one generated table file.
type symbolTable struct {
	Provider string              `yaml:"provider"`
	Modules  map[string][]string `yaml:"modules"`
}

// moduleClasses is the cached class set for one module.
type moduleClasses struct {
	names []string // sorted, as exported by the library

	// byLower and byNorm index names for the lookup cascade. A normalized
	// key may alias several classes; the first alphabetically wins.
	byLower map[string]string
	byNorm  map[string]string
}

// Index is the process-wide symbol index. Module class sets are populated
// lazily, at most once per module: concurrent first lookups collapse onto
// one loader via singleflight and observe the same set. After population,
// reads take no lock beyond sync.Map's internal one.
type Index struct {
	modules sync.Map // module path -> *moduleClasses
	group   singleflight.Group

	rawMu  sync.Mutex
	tables map[datatypes.Provider]*symbolTable

	moduleOwner map[string]datatypes.Provider // module path -> provider
	byProvider  map[datatypes.Provider][]string
}

// NewIndex builds an Index over the embedded generated tables. Only the
// module name lists are read eagerly; class sets load on first use.
func NewIndex() (*Index, error) {
	raw := map[datatypes.Provider][]byte{
		datatypes.ProviderAWS:   tableAWS,
		datatypes.ProviderAzure: tableAzure,
		datatypes.ProviderGCP:   tableGCP,
	}
	ix := &Index{
		tables:      make(map[datatypes.Provider]*symbolTable, len(raw)),
		moduleOwner: make(map[string]datatypes.Provider),
		byProvider:  make(map[datatypes.Provider][]string, len(raw)),
	}
	for provider, data := range raw {
		var tbl symbolTable
		if err := yaml.Unmarshal(data, &tbl); err != nil {
			return nil, fmt.Errorf("parsing %s symbol table: %w", provider, err)
		}
		if tbl.Provider != string(provider) {
			return nil, fmt.Errorf("symbol table for %s declares provider %q", provider, tbl.Provider)
		}
		ix.tables[provider] = &tbl
		mods := make([]string, 0, len(tbl.Modules))
		for m := range tbl.Modules {
			ix.moduleOwner[m] = provider
			mods = append(mods, m)
		}
		sort.Strings(mods)
		ix.byProvider[provider] = mods
	}
	return ix, nil
}

// ProviderModules returns the module paths of a provider, sorted.
func (ix *Index) ProviderModules(provider datatypes.Provider) []string {
	return ix.byProvider[provider]
}

// ClassesIn returns the exported class names of a module, sorted.
// Returns nil for unknown modules.
func (ix *Index) ClassesIn(module string) []string {
	mc, err := ix.load(module)
	if err != nil {
		return nil
	}
	return mc.names
}

// HasClass reports whether the module exposes class under its exact
// exported name. This is the direct-lookup path used by the resolver's
// last-resort stage; it must answer from the generated snapshot even when
// the registry hint that led here is stale.
func (ix *Index) HasClass(module, class string) bool {
	mc, err := ix.load(module)
	if err != nil {
		return false
	}
	_, ok := mc.byLower[strings.ToLower(class)]
	return ok && mc.byLower[strings.ToLower(class)] == class
}

// ExactClass returns the exported class matching name case-insensitively.
func (ix *Index) ExactClass(module, class string) (string, bool) {
	mc, err := ix.load(module)
	if err != nil {
		return "", false
	}
	got, ok := mc.byLower[strings.ToLower(class)]
	return got, ok
}

// load returns the cached class set for module, populating it at most
// once. Concurrent callers for the same module block on a single loader.
func (ix *Index) load(module string) (*moduleClasses, error) {
	if v, ok := ix.modules.Load(module); ok {
		return v.(*moduleClasses), nil
	}
	v, err, _ := ix.group.Do(module, func() (any, error) {
		// Re-check under the flight: a previous flight may have stored it.
		if v, ok := ix.modules.Load(module); ok {
			return v, nil
		}
		mc, err := ix.build(module)
		if err != nil {
			return nil, err
		}
		ix.modules.Store(module, mc)
		return mc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*moduleClasses), nil
}

// build materializes the class set for one module from the raw table.
func (ix *Index) build(module string) (*moduleClasses, error) {
	provider, ok := ix.moduleOwner[module]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", module)
	}

	ix.rawMu.Lock()
	names := ix.tables[provider].Modules[module]
	ix.rawMu.Unlock()

	mc := &moduleClasses{
		names:   make([]string, len(names)),
		byLower: make(map[string]string, len(names)),
		byNorm:  make(map[string]string, len(names)),
	}
	copy(mc.names, names)
	sort.Strings(mc.names)
	for _, name := range mc.names {
		lower := strings.ToLower(name)
		if _, exists := mc.byLower[lower]; !exists {
			mc.byLower[lower] = name
		}
		norm := Normalize(name)
		if _, exists := mc.byNorm[norm]; !exists {
			mc.byNorm[norm] = name
		}
	}
	return mc, nil
}

// Normalize strips underscores, hyphens and whitespace and lowercases,
// so that "api-gateway", "API Gateway" and "APIGateway" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '_', '-', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
