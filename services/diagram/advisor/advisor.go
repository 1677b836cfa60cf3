// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package advisor applies architectural best practices to a validated
// spec before it is rendered: layer ordering, missing-infrastructure
// inference, pattern-based edge suggestion, edge routing tuning and
// database port pinning.
//
// Every pass is additive and idempotent: running the advisor on its own
// output is a no-op, and values the user (or the LLM) already set are
// never overridden.
package advisor

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// autoIDPrefix marks components the advisor synthesized. Auto-added
// components carry metadata auto_added=true so later modifications can
// tell them apart from user intent.
const autoIDPrefix = "auto-"

// Options control which advisor passes run.
type Options struct {
	// ScopeRestricted disables component inference. Set when the user's
	// description signals they want exactly what they named ("only",
	// "just", "nothing else").
	ScopeRestricted bool
}

// Advisor rewrites specs according to the pattern catalog and layer
// tables. Safe for concurrent use.
type Advisor struct {
	patterns []pattern
	log      *slog.Logger
}

// New loads the embedded pattern catalog.
func New() (*Advisor, error) {
	patterns, err := loadPatterns()
	if err != nil {
		return nil, err
	}
	return &Advisor{patterns: patterns, log: slog.Default()}, nil
}

// scopeMarkers in a description indicate the user wants no additions.
var scopeMarkers = []string{"only", "just", "exactly", "nothing else", "no extra", "as-is"}

// DetectScopeRestriction reports whether a description asks the advisor
// to keep its hands off the component set.
func DetectScopeRestriction(description string) bool {
	lowered := strings.ToLower(description)
	for _, m := range scopeMarkers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

// Advise returns an adjusted deep copy of the spec plus a human-readable
// list of what changed. The input is never mutated. Providers other than
// aws pass through untouched: the layer and pattern tables are aws
// vocabulary.
func (a *Advisor) Advise(spec *datatypes.ArchitectureSpec, opts Options) (*datatypes.ArchitectureSpec, []string) {
	out := spec.Clone()
	if out.Provider != datatypes.ProviderAWS {
		return out, nil
	}

	var changes []string
	if !opts.ScopeRestricted {
		changes = append(changes, a.inferDependencies(out)...)
	}
	changes = append(changes, a.applyPatterns(out)...)
	a.sortByLayer(out)
	changes = append(changes, a.formClusters(out)...)
	a.tuneRouting(out)
	a.pinDatabasePorts(out)

	if len(changes) > 0 {
		a.log.Info("advisor adjusted spec",
			slog.String("title", out.Title),
			slog.Int("changes", len(changes)))
	}
	return out, changes
}

// inferDependencies synthesizes infrastructure a component type cannot
// exist without, when the spec contains none of it. Synthesized ids are
// deterministic so a second pass finds the dependency present and adds
// nothing.
func (a *Advisor) inferDependencies(spec *datatypes.ArchitectureSpec) []string {
	present := make(map[string]bool, len(spec.Components))
	ids := make(map[string]bool, len(spec.Components))
	for _, c := range spec.Components {
		present[c.Type] = true
		ids[c.ID] = true
	}

	var changes []string
	// Iterate components, not the dependency table, so output order
	// follows the spec.
	for _, c := range spec.Components {
		deps, ok := typeDependencies[c.Type]
		if !ok {
			continue
		}
		anyPresent := false
		for _, dep := range deps {
			if present[dep] || (dep == "subnet" && (present["public_subnet"] || present["private_subnet"])) {
				anyPresent = true
				break
			}
		}
		if anyPresent {
			continue
		}
		for _, dep := range deps {
			if present[dep] {
				continue
			}
			id := autoIDPrefix + dep
			if ids[id] {
				continue
			}
			spec.Components = append(spec.Components, datatypes.Component{
				ID:       id,
				Name:     displayName(dep),
				Type:     dep,
				Metadata: map[string]string{"auto_added": "true"},
			})
			present[dep] = true
			ids[id] = true
			changes = append(changes, fmt.Sprintf("added %s (required by %s)", dep, c.Type))
		}
	}
	return changes
}

// applyPatterns adds the missing edges of any fully-present pattern.
// Existing connections between the endpoints, in either direction,
// suppress the suggestion.
func (a *Advisor) applyPatterns(spec *datatypes.ArchitectureSpec) []string {
	firstOfType := make(map[string]string, len(spec.Components))
	for _, c := range spec.Components {
		if _, ok := firstOfType[c.Type]; !ok {
			firstOfType[c.Type] = c.ID
		}
	}
	connected := make(map[[2]string]bool, len(spec.Connections))
	for _, conn := range spec.Connections {
		connected[[2]string{conn.FromID, conn.ToID}] = true
		connected[[2]string{conn.ToID, conn.FromID}] = true
	}

	var changes []string
	for _, p := range a.patterns {
		complete := true
		for _, typ := range p.Components {
			if _, ok := firstOfType[typ]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, e := range p.Edges {
			from, to := firstOfType[e[0]], firstOfType[e[1]]
			if connected[[2]string{from, to}] {
				continue
			}
			spec.Connections = append(spec.Connections, datatypes.Connection{
				FromID:    from,
				ToID:      to,
				Direction: datatypes.ConnForward,
			})
			connected[[2]string{from, to}] = true
			connected[[2]string{to, from}] = true
			changes = append(changes, fmt.Sprintf("connected %s to %s (%s pattern)", e[0], e[1], p.Name))
		}
	}
	return changes
}

// sortByLayer orders components edge-to-data. The sort is stable, so
// components in the same layer keep their spec order and a second pass
// changes nothing.
func (a *Advisor) sortByLayer(spec *datatypes.ArchitectureSpec) {
	slices.SortStableFunc(spec.Components, func(x, y datatypes.Component) int {
		return layerOf(x.Type) - layerOf(y.Type)
	})
}

// formClusters groups three or more unclustered components of the same
// layer into a named cluster. Components already in a cluster are never
// touched, which also makes the pass idempotent.
func (a *Advisor) formClusters(spec *datatypes.ArchitectureSpec) []string {
	clustered := make(map[string]bool)
	clusterIDs := make(map[string]bool, len(spec.Clusters))
	for _, cl := range spec.Clusters {
		clusterIDs[cl.ID] = true
		for _, cid := range cl.ComponentIDs {
			clustered[cid] = true
		}
	}

	byLayer := make(map[int][]string)
	for _, c := range spec.Components {
		if clustered[c.ID] {
			continue
		}
		l := layerOf(c.Type)
		byLayer[l] = append(byLayer[l], c.ID)
	}

	var changes []string
	layers := slices.Sorted(maps.Keys(byLayer))
	for _, l := range layers {
		members := byLayer[l]
		if len(members) < 3 {
			continue
		}
		id := fmt.Sprintf("%slayer-%d", autoIDPrefix, l)
		if clusterIDs[id] {
			continue
		}
		spec.Clusters = append(spec.Clusters, datatypes.Cluster{
			ID:           id,
			Name:         layerNames[l],
			ComponentIDs: members,
		})
		changes = append(changes, fmt.Sprintf("grouped %d components into %q", len(members), layerNames[l]))
	}
	return changes
}

// routingProfile is a graph_attr preset keyed on edge count. Dense
// graphs get orthogonal or concentrated routing and more space between
// ranks; sparse graphs stay compact.
type routingProfile struct {
	splines     string
	concentrate bool
	nodesep     string
	ranksep     string
}

func profileFor(edgeCount int) routingProfile {
	switch {
	case edgeCount > 15:
		return routingProfile{splines: "polyline", concentrate: true, nodesep: "1.0", ranksep: "1.5"}
	case edgeCount >= 10:
		return routingProfile{splines: "ortho", nodesep: "0.9", ranksep: "1.3"}
	case edgeCount >= 5:
		return routingProfile{splines: "polyline", nodesep: "0.8", ranksep: "1.2"}
	default:
		return routingProfile{splines: "polyline", nodesep: "0.8", ranksep: "1.0"}
	}
}

// tuneRouting fills graph and node attributes the spec does not already
// set. User-provided values always win.
func (a *Advisor) tuneRouting(spec *datatypes.ArchitectureSpec) {
	p := profileFor(len(spec.Connections))

	if spec.GraphvizAttrs.Graph == nil {
		spec.GraphvizAttrs.Graph = make(map[string]string)
	}
	setIfAbsent(spec.GraphvizAttrs.Graph, "splines", p.splines)
	setIfAbsent(spec.GraphvizAttrs.Graph, "nodesep", p.nodesep)
	setIfAbsent(spec.GraphvizAttrs.Graph, "ranksep", p.ranksep)
	setIfAbsent(spec.GraphvizAttrs.Graph, "overlap", "false")
	if p.concentrate {
		setIfAbsent(spec.GraphvizAttrs.Graph, "concentrate", "true")
	}

	if spec.GraphvizAttrs.Node == nil {
		spec.GraphvizAttrs.Node = make(map[string]string)
	}
	setIfAbsent(spec.GraphvizAttrs.Node, "fixedsize", "shape")
	setIfAbsent(spec.GraphvizAttrs.Node, "width", "1.0")
	setIfAbsent(spec.GraphvizAttrs.Node, "height", "1.0")
}

// pinDatabasePorts pins edges into databases to leave the source from
// the south and enter the target from the north, so datastore fan-in
// reads top-down regardless of layout direction.
func (a *Advisor) pinDatabasePorts(spec *datatypes.ArchitectureSpec) {
	dbTargets := make(map[string]bool)
	for _, c := range spec.Components {
		if isDatabaseType(c.Type) {
			dbTargets[c.ID] = true
		}
	}
	for i := range spec.Connections {
		conn := &spec.Connections[i]
		if !dbTargets[conn.ToID] {
			continue
		}
		if conn.GraphvizAttrs == nil {
			conn.GraphvizAttrs = make(map[string]string)
		}
		setIfAbsent(conn.GraphvizAttrs, "tailport", "s")
		setIfAbsent(conn.GraphvizAttrs, "headport", "n")
	}
}

func isDatabaseType(typeID string) bool {
	for _, p := range databaseTypePrefixes {
		if typeID == p || strings.HasPrefix(typeID, p+"_") {
			return true
		}
	}
	return false
}

func setIfAbsent(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// displayName turns a type id into a readable component name.
func displayName(typeID string) string {
	parts := strings.Split(typeID, "_")
	for i, p := range parts {
		if len(p) <= 3 {
			parts[i] = strings.ToUpper(p)
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
