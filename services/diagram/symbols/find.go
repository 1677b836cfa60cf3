// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// FuzzyThreshold is the minimum similarity for a fuzzy class match.
const FuzzyThreshold = 0.60

// Match is a located renderer symbol.
type Match struct {
	Module string
	Class  string
	// Score is 1.0 for exact/normalized matches, the similarity ratio for
	// fuzzy ones.
	Score float64
}

// Suggestion is a near-miss candidate reported in resolver diagnostics.
type Suggestion struct {
	Module string  `json:"module"`
	Class  string  `json:"class"`
	Score  float64 `json:"score"`
}

// Similarity returns a ratio in [0,1] between two strings: 1 minus the
// Levenshtein distance over the longer length. Both sides are normalized
// first so separators and case do not count as edits.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	longest := max(len(na), len(nb))
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1.0 - float64(dist)/float64(longest)
}

// Find locates a renderer class for a free-form type id. When
// categoryHint names a registered module, that module's set is searched
// first and wins on any hit; otherwise all of the provider's modules are
// searched together. Returns false when nothing clears the fuzzy
// threshold.
func (ix *Index) Find(provider datatypes.Provider, typeID, hintModule string) (Match, bool) {
	if typeID == "" {
		return Match{}, false
	}
	if hintModule != "" {
		if m, ok := ix.findIn([]string{hintModule}, typeID); ok {
			return m, true
		}
	}
	return ix.findIn(ix.byProvider[provider], typeID)
}

// findIn runs the match cascade over a candidate module set. Each tier is
// exhausted across all modules before the next tier is tried, so an exact
// name in a later module beats a fuzzy hit in an earlier one.
func (ix *Index) findIn(modules []string, typeID string) (Match, bool) {
	norm := Normalize(typeID)
	lower := strings.ToLower(typeID)

	// Tier a: exact, case-insensitive.
	for _, module := range modules {
		mc, err := ix.load(module)
		if err != nil {
			continue
		}
		if class, ok := mc.byLower[lower]; ok {
			return Match{Module: module, Class: class, Score: 1.0}, true
		}
	}

	// Tier b: normalized-equal.
	for _, module := range modules {
		mc, err := ix.load(module)
		if err != nil {
			continue
		}
		if class, ok := mc.byNorm[norm]; ok {
			return Match{Module: module, Class: class, Score: 1.0}, true
		}
	}

	// Tier c: substring over normalized names. A class containing the
	// query is preferred (shortest such class, i.e. the tightest
	// superset); failing that, a class contained in the query (longest
	// such class, i.e. the most specific prefix the library knows).
	var super, inner *Match
	for _, module := range modules {
		mc, err := ix.load(module)
		if err != nil {
			continue
		}
		for _, class := range mc.names {
			cn := Normalize(class)
			switch {
			case strings.Contains(cn, norm):
				if super == nil || len(class) < len(super.Class) ||
					(len(class) == len(super.Class) && class < super.Class) {
					super = &Match{Module: module, Class: class, Score: 0.9}
				}
			case strings.Contains(norm, cn):
				if inner == nil || len(class) > len(inner.Class) ||
					(len(class) == len(inner.Class) && class < inner.Class) {
					inner = &Match{Module: module, Class: class, Score: 0.9}
				}
			}
		}
	}
	if super != nil {
		return *super, true
	}
	if inner != nil {
		return *inner, true
	}

	// Tier d: fuzzy. Best score wins; ties break alphabetically.
	var best *Match
	for _, module := range modules {
		mc, err := ix.load(module)
		if err != nil {
			continue
		}
		for _, class := range mc.names {
			score := Similarity(typeID, class)
			if score < FuzzyThreshold {
				continue
			}
			if best == nil || score > best.Score ||
				(score == best.Score && class < best.Class) {
				best = &Match{Module: module, Class: class, Score: score}
			}
		}
	}
	if best != nil {
		return *best, true
	}
	return Match{}, false
}

// Suggest returns the top-n fuzzy candidates for typeID across every
// module of the provider, ordered by descending score then class name.
// No threshold is applied: diagnostics want near misses even when they
// were not good enough to resolve.
func (ix *Index) Suggest(provider datatypes.Provider, typeID string, n int) []Suggestion {
	var all []Suggestion
	for _, module := range ix.byProvider[provider] {
		mc, err := ix.load(module)
		if err != nil {
			continue
		}
		for _, class := range mc.names {
			all = append(all, Suggestion{
				Module: module,
				Class:  class,
				Score:  Similarity(typeID, class),
			})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Class < all[j].Class
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
