// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolver maps a component's free-form type to a concrete
// renderer class through a four-stage cascade:
//
//  1. library-first lookup in the symbol index,
//  2. contextual resolution for ambiguous types (name tokens, fuzzy
//     matching against known type ids, keyword overlap),
//  3. registry-hint fallback with a direct table lookup for stale hints,
//  4. structured diagnostic failure.
//
// Resolution is fatal for the request that contains the component; there
// is no silent substitution.
package resolver

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
)

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	Module string
	Class  string
	// TypeID is the effective type id after contextual refinement, e.g.
	// "subnet" with a name of "Public Subnet" resolves as "public_subnet".
	TypeID string
}

// Resolver performs the cascade. Safe for concurrent use; results are
// memoized for the process lifetime (the installed library does not
// change underneath a running service).
type Resolver struct {
	index    *symbols.Index
	registry *symbols.Registry
	rules    *contextRules

	cache sync.Map // cacheKey -> Resolved
}

type cacheKey struct {
	provider datatypes.Provider
	typeID   string
	nameHash uint64
}

// New builds a Resolver over the given index and registry.
func New(index *symbols.Index, registry *symbols.Registry) (*Resolver, error) {
	rules, err := loadContextRules()
	if err != nil {
		return nil, err
	}
	return &Resolver{index: index, registry: registry, rules: rules}, nil
}

// Resolve maps a component to a renderer class, or fails with a
// *ResolutionError carrying diagnostics.
func (r *Resolver) Resolve(ctx context.Context, comp datatypes.Component, provider datatypes.Provider) (Resolved, error) {
	typeID := strings.ToLower(strings.TrimSpace(comp.Type))
	key := cacheKey{provider: provider, typeID: typeID, nameHash: hashName(comp.Name)}
	if v, ok := r.cache.Load(key); ok {
		return v.(Resolved), nil
	}

	res, err := r.resolve(ctx, comp, provider, typeID)
	if err != nil {
		return Resolved{}, err
	}
	r.cache.Store(key, res)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, comp datatypes.Component, provider datatypes.Provider, typeID string) (Resolved, error) {
	logger := slog.Default()

	// Ambiguous type ids go straight to contextual refinement: a plain
	// index hit for "subnet" would pick an arbitrary concrete class and
	// ignore the component's name.
	if r.registry.IsAmbiguous(provider, typeID) {
		if refined, ok := r.refine(comp, provider, typeID); ok {
			if res, ok := r.stage1(provider, refined); ok {
				logger.DebugContext(ctx, "resolved ambiguous type via context",
					"type", typeID, "refined", refined, "class", res.Class)
				return res, nil
			}
		}
	}

	// Stage 1: library-first discovery.
	if res, ok := r.stage1(provider, typeID); ok {
		return res, nil
	}

	// Stage 2: contextual resolution for plain misses.
	if refined, ok := r.refine(comp, provider, typeID); ok && refined != typeID {
		if res, ok := r.stage1(provider, refined); ok {
			logger.DebugContext(ctx, "resolved via contextual refinement",
				"type", typeID, "refined", refined, "class", res.Class)
			return res, nil
		}
	}

	// Stage 3: registry fallback. The hint may reference a class the
	// hinted search missed; consult the generated table directly by
	// exact name before giving up.
	if hint, ok := r.registry.Mapping(provider, typeID); ok {
		if module, ok := r.registry.ModuleFor(provider, hint.Category); ok {
			if r.index.HasClass(module, hint.Class) {
				return Resolved{Module: module, Class: hint.Class, TypeID: typeID}, nil
			}
			if class, ok := r.index.ExactClass(module, hint.Class); ok {
				logger.InfoContext(ctx, "registry hint resolved via direct table lookup",
					"type", typeID, "module", module, "class", class)
				return Resolved{Module: module, Class: class, TypeID: typeID}, nil
			}
		}
	}

	// Stage 4: diagnostic failure.
	return Resolved{}, r.diagnostic(provider, comp, typeID)
}

// stage1 runs the symbol index lookup with the registry category hint.
func (r *Resolver) stage1(provider datatypes.Provider, typeID string) (Resolved, bool) {
	var hintModule string
	if hint, ok := r.registry.Mapping(provider, typeID); ok {
		if m, ok := r.registry.ModuleFor(provider, hint.Category); ok {
			hintModule = m
		}
	}
	m, ok := r.index.Find(provider, typeID, hintModule)
	if !ok {
		return Resolved{}, false
	}
	return Resolved{Module: m.Module, Class: m.Class, TypeID: typeID}, true
}

// refine applies the contextual resolution procedure: the pattern table
// first, then fuzzy matching against known type ids, then keyword
// overlap against the registry's descriptive token index.
func (r *Resolver) refine(comp datatypes.Component, provider datatypes.Provider, typeID string) (string, bool) {
	tokens := nameTokens(comp.Name)

	if refined, ok := r.rules.apply(provider, typeID, tokens); ok {
		return refined, true
	}

	// Fuzzy against the provider's known type ids.
	best, bestScore := "", symbols.FuzzyThreshold
	for _, known := range r.registry.AllTypeIDs(provider) {
		if score := symbols.Similarity(typeID, known); score > bestScore ||
			(score == bestScore && best == "") {
			best, bestScore = known, score
		}
	}
	if best != "" && best != typeID {
		return best, true
	}

	// Keyword overlap against the descriptive index. Name tokens and the
	// type id's own words both count.
	query := append(tokens, strings.FieldsFunc(typeID, func(r rune) bool {
		return r == '_' || r == '-'
	})...)
	bestID, bestOverlap := "", 0
	for id, words := range r.registry.Keywords(provider) {
		overlap := 0
		for _, w := range words {
			for _, q := range query {
				if q == w {
					overlap++
				}
			}
		}
		if overlap > bestOverlap || (overlap == bestOverlap && overlap > 0 && id < bestID) {
			bestID, bestOverlap = id, overlap
		}
	}
	if bestOverlap > 0 && bestID != typeID {
		return bestID, true
	}
	return "", false
}

// nameTokens lowercases and splits a display name into words.
func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}

func hashName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return h.Sum64()
}

// diagnostic builds the Stage 4 failure payload.
func (r *Resolver) diagnostic(provider datatypes.Provider, comp datatypes.Component, typeID string) *ResolutionError {
	e := &ResolutionError{
		Provider:    provider,
		TypeID:      typeID,
		ComponentID: comp.ID,
		Suggestions: r.index.Suggest(provider, typeID, 5),
		Available:   make(map[string][]string),
	}

	// Categorized listing of what the hinted module actually exposes; if
	// there is no hint, list every category so the user can browse.
	if hint, ok := r.registry.Mapping(provider, typeID); ok {
		if module, ok := r.registry.ModuleFor(provider, hint.Category); ok {
			e.Available[hint.Category] = r.index.ClassesIn(module)
			if !r.index.HasClass(module, hint.Class) {
				e.Hint = fmt.Sprintf(
					"the catalog maps %q to %s.%s but the installed icon library does not expose it; "+
						"the library version may be outdated", typeID, module, hint.Class)
			}
		}
	} else {
		for _, category := range r.registry.Categories(provider) {
			if module, ok := r.registry.ModuleFor(provider, category); ok {
				e.Available[category] = r.index.ClassesIn(module)
			}
		}
	}
	return e
}
