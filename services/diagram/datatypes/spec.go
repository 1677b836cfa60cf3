// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire and domain types shared between the
// diagram service's handlers, advisor, resolver and engine.
//
// The central type is ArchitectureSpec: the structured description of a
// diagram produced by the LLM architect (or supplied by a client), validated
// here before any downstream pass runs on it.
package datatypes

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Provider is a cloud vendor namespace selecting an icon set.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderAzure Provider = "azure"
	ProviderGCP   Provider = "gcp"
)

// KnownProviders is the closed set of supported providers.
var KnownProviders = []Provider{ProviderAWS, ProviderAzure, ProviderGCP}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return slices.Contains(KnownProviders, p)
}

// OutFormat is a rendered artifact format.
type OutFormat string

const (
	FormatPNG OutFormat = "png"
	FormatSVG OutFormat = "svg"
	FormatPDF OutFormat = "pdf"
	FormatDot OutFormat = "dot"
)

// KnownFormats is the closed set of supported output formats.
var KnownFormats = []OutFormat{FormatPNG, FormatSVG, FormatPDF, FormatDot}

// Valid reports whether f is a supported output format.
func (f OutFormat) Valid() bool {
	return slices.Contains(KnownFormats, f)
}

// Direction is the graph layout direction.
type Direction string

const (
	DirectionLR Direction = "LR"
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
	DirectionRL Direction = "RL"
)

// Valid reports whether d is a supported direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionLR, DirectionTB, DirectionBT, DirectionRL:
		return true
	}
	return false
}

// ConnDirection selects the renderer edge operator.
type ConnDirection string

const (
	ConnForward       ConnDirection = "forward"
	ConnBackward      ConnDirection = "backward"
	ConnBidirectional ConnDirection = "bidirectional"
)

// Valid reports whether d is a supported connection direction. The empty
// string is accepted and treated as forward.
func (d ConnDirection) Valid() bool {
	switch d {
	case "", ConnForward, ConnBackward, ConnBidirectional:
		return true
	}
	return false
}

// OutFormats accepts either a single format string or a list on the wire.
// The order is preserved; the first entry is the primary format whose URL
// is returned in the singular diagram_url field.
type OutFormats []OutFormat

// UnmarshalJSON accepts "png" as well as ["png", "svg"].
func (f *OutFormats) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = OutFormats{OutFormat(single)}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("out_format must be a string or list of strings")
	}
	out := make(OutFormats, 0, len(many))
	for _, s := range many {
		out = append(out, OutFormat(s))
	}
	*f = out
	return nil
}

// GraphvizAttrs carries the three Graphviz attribute maps.
type GraphvizAttrs struct {
	Graph map[string]string `json:"graph_attr,omitempty"`
	Node  map[string]string `json:"node_attr,omitempty"`
	Edge  map[string]string `json:"edge_attr,omitempty"`
}

// Clone returns a deep copy.
func (g GraphvizAttrs) Clone() GraphvizAttrs {
	return GraphvizAttrs{
		Graph: maps.Clone(g.Graph),
		Node:  maps.Clone(g.Node),
		Edge:  maps.Clone(g.Edge),
	}
}

// Component is a node in the diagram.
type Component struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Provider      Provider          `json:"provider,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	GraphvizAttrs map[string]string `json:"graphviz_attrs,omitempty"`
}

// Connection is a directed or bidirectional edge between components.
type Connection struct {
	FromID        string            `json:"from_id"`
	ToID          string            `json:"to_id"`
	Label         string            `json:"label,omitempty"`
	Direction     ConnDirection     `json:"direction,omitempty"`
	GraphvizAttrs map[string]string `json:"graphviz_attrs,omitempty"`
}

// Cluster is a visual grouping of components. Clusters form a forest via
// ParentID; the wire model is a flat list, never a recursive tree.
type Cluster struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ComponentIDs  []string          `json:"component_ids,omitempty"`
	ParentID      string            `json:"parent_id,omitempty"`
	GraphvizAttrs map[string]string `json:"graphviz_attrs,omitempty"`
}

// ArchitectureSpec is the full structured description of a diagram.
type ArchitectureSpec struct {
	Title         string        `json:"title"`
	Provider      Provider      `json:"provider"`
	Direction     Direction     `json:"direction,omitempty"`
	OutFormats    OutFormats    `json:"out_format,omitempty"`
	Components    []Component   `json:"components"`
	Connections   []Connection  `json:"connections,omitempty"`
	Clusters      []Cluster     `json:"clusters,omitempty"`
	GraphvizAttrs GraphvizAttrs `json:"graphviz_attrs,omitempty"`
}

// EffectiveProvider returns the component's provider override, or the
// spec-level provider when the component does not set one.
func (s *ArchitectureSpec) EffectiveProvider(c Component) Provider {
	if c.Provider != "" {
		return c.Provider
	}
	return s.Provider
}

// ComponentByID returns the component with the given id, if present.
func (s *ArchitectureSpec) ComponentByID(id string) (Component, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

// Clone returns a deep copy of the spec. Used for the session undo stack,
// where snapshots must not alias live maps and slices.
func (s *ArchitectureSpec) Clone() *ArchitectureSpec {
	out := &ArchitectureSpec{
		Title:         s.Title,
		Provider:      s.Provider,
		Direction:     s.Direction,
		OutFormats:    slices.Clone(s.OutFormats),
		GraphvizAttrs: s.GraphvizAttrs.Clone(),
	}
	out.Components = make([]Component, len(s.Components))
	for i, c := range s.Components {
		c.Metadata = maps.Clone(c.Metadata)
		c.GraphvizAttrs = maps.Clone(c.GraphvizAttrs)
		out.Components[i] = c
	}
	out.Connections = make([]Connection, len(s.Connections))
	for i, c := range s.Connections {
		c.GraphvizAttrs = maps.Clone(c.GraphvizAttrs)
		out.Connections[i] = c
	}
	out.Clusters = make([]Cluster, len(s.Clusters))
	for i, c := range s.Clusters {
		c.ComponentIDs = slices.Clone(c.ComponentIDs)
		c.GraphvizAttrs = maps.Clone(c.GraphvizAttrs)
		out.Clusters[i] = c
	}
	return out
}

// Validate checks the structural invariants of the spec:
//
//   - title and at least one component present
//   - provider, direction, formats, connection directions in their closed sets
//   - component ids unique
//   - no dangling connection endpoints
//   - each component in at most one cluster
//   - cluster parent references form a forest (no cycles, no unknown parents)
//
// Handlers call this on every ingest path (LLM output included) before the
// advisor or resolver sees the spec.
func (s *ArchitectureSpec) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("spec title is required")
	}
	if !s.Provider.Valid() {
		return fmt.Errorf("unknown provider %q", s.Provider)
	}
	if s.Direction != "" && !s.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", s.Direction)
	}
	for _, f := range s.OutFormats {
		if !f.Valid() {
			return fmt.Errorf("unknown out_format %q", f)
		}
	}
	if len(s.Components) == 0 {
		return fmt.Errorf("spec has no components")
	}

	ids := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("component with empty id (name %q)", c.Name)
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate component id %q", c.ID)
		}
		if c.Provider != "" && !c.Provider.Valid() {
			return fmt.Errorf("component %q: unknown provider %q", c.ID, c.Provider)
		}
		if strings.TrimSpace(c.Type) == "" {
			return fmt.Errorf("component %q has no type", c.ID)
		}
		ids[c.ID] = true
	}

	for i, conn := range s.Connections {
		if !ids[conn.FromID] {
			return fmt.Errorf("connection %d: from_id %q does not reference a component", i, conn.FromID)
		}
		if !ids[conn.ToID] {
			return fmt.Errorf("connection %d: to_id %q does not reference a component", i, conn.ToID)
		}
		if !conn.Direction.Valid() {
			return fmt.Errorf("connection %d: unknown direction %q", i, conn.Direction)
		}
	}

	return s.validateClusters(ids)
}

func (s *ArchitectureSpec) validateClusters(componentIDs map[string]bool) error {
	clusterIDs := make(map[string]bool, len(s.Clusters))
	for _, cl := range s.Clusters {
		if strings.TrimSpace(cl.ID) == "" {
			return fmt.Errorf("cluster with empty id (name %q)", cl.Name)
		}
		if clusterIDs[cl.ID] {
			return fmt.Errorf("duplicate cluster id %q", cl.ID)
		}
		clusterIDs[cl.ID] = true
	}

	owned := make(map[string]string) // component id -> owning cluster id
	parents := make(map[string]string)
	for _, cl := range s.Clusters {
		if cl.ParentID != "" {
			if cl.ParentID == cl.ID {
				return fmt.Errorf("cluster %q is its own parent", cl.ID)
			}
			if !clusterIDs[cl.ParentID] {
				return fmt.Errorf("cluster %q: unknown parent %q", cl.ID, cl.ParentID)
			}
			parents[cl.ID] = cl.ParentID
		}
		for _, cid := range cl.ComponentIDs {
			if !componentIDs[cid] {
				return fmt.Errorf("cluster %q references unknown component %q", cl.ID, cid)
			}
			if prev, ok := owned[cid]; ok {
				return fmt.Errorf("component %q belongs to clusters %q and %q", cid, prev, cl.ID)
			}
			owned[cid] = cl.ID
		}
	}

	// Walk each parent chain; a chain longer than the cluster count means
	// a cycle.
	for id := range parents {
		seen := 0
		for cur := id; cur != ""; cur = parents[cur] {
			seen++
			if seen > len(s.Clusters) {
				return fmt.Errorf("cluster parent cycle involving %q", id)
			}
		}
	}
	return nil
}
