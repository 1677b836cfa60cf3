// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

func newTestAdvisor(t *testing.T) *Advisor {
	t.Helper()
	a, err := New()
	require.NoError(t, err)
	return a
}

func componentTypes(spec *datatypes.ArchitectureSpec) []string {
	out := make([]string, len(spec.Components))
	for i, c := range spec.Components {
		out[i] = c.Type
	}
	return out
}

func TestAdvise_InfersVPCForEC2(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Web",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "web", Name: "Web Server", Type: "ec2"},
		},
	}

	out, changes := a.Advise(spec, Options{})
	assert.NotEmpty(t, changes)

	types := componentTypes(out)
	assert.Contains(t, types, "vpc")
	assert.Contains(t, types, "subnet")

	vpc, ok := out.ComponentByID("auto-vpc")
	require.True(t, ok)
	assert.Equal(t, "true", vpc.Metadata["auto_added"])

	// Input untouched.
	assert.Len(t, spec.Components, 1)
}

func TestAdvise_ScopeRestrictedSkipsInference(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Web",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "web", Name: "Web Server", Type: "ec2"},
		},
	}
	out, _ := a.Advise(spec, Options{ScopeRestricted: true})
	assert.Len(t, out.Components, 1)
}

func TestAdvise_NoInferenceWhenDependencyPresent(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Web",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "web", Name: "Web Server", Type: "ec2"},
			{ID: "net", Name: "Private Subnet", Type: "private_subnet"},
		},
	}
	out, _ := a.Advise(spec, Options{})
	for _, c := range out.Components {
		assert.NotEqual(t, "vpc", c.Type, "subnet presence satisfies the ec2 dependency")
	}
}

func TestAdvise_PatternEdges(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Serverless API",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "gw", Name: "API", Type: "api_gateway"},
			{ID: "fn", Name: "Handler", Type: "lambda"},
			{ID: "db", Name: "Table", Type: "dynamodb"},
		},
	}

	out, changes := a.Advise(spec, Options{})
	require.Len(t, out.Connections, 2)
	assert.Equal(t, "gw", out.Connections[0].FromID)
	assert.Equal(t, "fn", out.Connections[0].ToID)
	assert.Equal(t, "fn", out.Connections[1].FromID)
	assert.Equal(t, "db", out.Connections[1].ToID)
	assert.NotEmpty(t, changes)
}

func TestAdvise_PatternRespectsExistingEdges(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Serverless API",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "gw", Name: "API", Type: "api_gateway"},
			{ID: "fn", Name: "Handler", Type: "lambda"},
			{ID: "db", Name: "Table", Type: "dynamodb"},
		},
		Connections: []datatypes.Connection{
			// Reverse direction still counts as connected.
			{FromID: "fn", ToID: "gw", Label: "responds"},
		},
	}
	out, _ := a.Advise(spec, Options{})
	assert.Len(t, out.Connections, 2, "only the fn->db edge should be added")
}

func TestAdvise_LayerOrdering(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Ordered",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "db", Name: "Table", Type: "dynamodb"},
			{ID: "fn", Name: "Handler", Type: "lambda"},
			{ID: "dns", Name: "DNS", Type: "route53"},
		},
	}
	out, _ := a.Advise(spec, Options{})
	assert.Equal(t, []string{"route53", "lambda", "dynamodb"}, componentTypes(out))
}

func TestAdvise_Idempotent(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Serverless API",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "gw", Name: "API", Type: "api_gateway"},
			{ID: "fn", Name: "Handler", Type: "lambda"},
			{ID: "db", Name: "Table", Type: "dynamodb"},
			{ID: "web", Name: "Web Server", Type: "ec2"},
		},
	}

	once, _ := a.Advise(spec, Options{})
	twice, changes := a.Advise(once, Options{})
	assert.Empty(t, changes, "second pass should find nothing to do")
	assert.Equal(t, once, twice)
}

func TestAdvise_ClusterFormation(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Workers",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "f1", Name: "Worker 1", Type: "lambda"},
			{ID: "f2", Name: "Worker 2", Type: "lambda"},
			{ID: "f3", Name: "Worker 3", Type: "lambda"},
		},
	}
	out, _ := a.Advise(spec, Options{})
	require.Len(t, out.Clusters, 1)
	assert.Equal(t, "Compute", out.Clusters[0].Name)
	assert.ElementsMatch(t, []string{"f1", "f2", "f3"}, out.Clusters[0].ComponentIDs)
}

func TestAdvise_NeverReclusters(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Workers",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "f1", Name: "Worker 1", Type: "lambda"},
			{ID: "f2", Name: "Worker 2", Type: "lambda"},
			{ID: "f3", Name: "Worker 3", Type: "lambda"},
		},
		Clusters: []datatypes.Cluster{
			{ID: "user", Name: "Mine", ComponentIDs: []string{"f1", "f2", "f3"}},
		},
	}
	out, _ := a.Advise(spec, Options{})
	assert.Len(t, out.Clusters, 1)
}

func TestAdvise_RoutingNeverOverridesUserAttrs(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Tuned",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "fn", Name: "Handler", Type: "lambda"},
		},
		GraphvizAttrs: datatypes.GraphvizAttrs{
			Graph: map[string]string{"splines": "curved"},
		},
	}
	out, _ := a.Advise(spec, Options{})
	assert.Equal(t, "curved", out.GraphvizAttrs.Graph["splines"])
	assert.Equal(t, "false", out.GraphvizAttrs.Graph["overlap"])
	assert.Equal(t, "shape", out.GraphvizAttrs.Node["fixedsize"])
}

func TestProfileFor(t *testing.T) {
	tests := []struct {
		edges       int
		splines     string
		concentrate bool
		ranksep     string
	}{
		{0, "polyline", false, "1.0"},
		{4, "polyline", false, "1.0"},
		{5, "polyline", false, "1.2"},
		{9, "polyline", false, "1.2"},
		{10, "ortho", false, "1.3"},
		{15, "ortho", false, "1.3"},
		{16, "polyline", true, "1.5"},
	}
	for _, tt := range tests {
		p := profileFor(tt.edges)
		assert.Equal(t, tt.splines, p.splines, "edges=%d", tt.edges)
		assert.Equal(t, tt.concentrate, p.concentrate, "edges=%d", tt.edges)
		assert.Equal(t, tt.ranksep, p.ranksep, "edges=%d", tt.edges)
	}
}

func TestAdvise_DatabasePortPinning(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Store",
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "fn", Name: "Handler", Type: "lambda"},
			{ID: "db", Name: "Table", Type: "dynamodb"},
			{ID: "q", Name: "Jobs", Type: "sqs"},
		},
		Connections: []datatypes.Connection{
			{FromID: "fn", ToID: "db"},
			{FromID: "fn", ToID: "q"},
			{FromID: "fn", ToID: "db", Label: "audit", GraphvizAttrs: map[string]string{"tailport": "e"}},
		},
	}
	out, _ := a.Advise(spec, Options{})

	var dbEdges, qEdges, pinnedUser int
	for _, conn := range out.Connections {
		switch {
		case conn.ToID == "db" && conn.Label == "audit":
			assert.Equal(t, "e", conn.GraphvizAttrs["tailport"], "user value kept")
			pinnedUser++
		case conn.ToID == "db":
			assert.Equal(t, "s", conn.GraphvizAttrs["tailport"])
			assert.Equal(t, "n", conn.GraphvizAttrs["headport"])
			dbEdges++
		case conn.ToID == "q":
			assert.Empty(t, conn.GraphvizAttrs)
			qEdges++
		}
	}
	assert.Equal(t, 1, dbEdges)
	assert.Equal(t, 1, qEdges)
	assert.Equal(t, 1, pinnedUser)
}

func TestAdvise_NonAWSPassThrough(t *testing.T) {
	a := newTestAdvisor(t)
	spec := &datatypes.ArchitectureSpec{
		Title:    "Azure",
		Provider: datatypes.ProviderAzure,
		Components: []datatypes.Component{
			{ID: "vm", Name: "VM", Type: "vm"},
		},
	}
	out, changes := a.Advise(spec, Options{})
	assert.Empty(t, changes)
	assert.Equal(t, spec.Components, out.Components)
	assert.Empty(t, out.Connections)
	assert.Empty(t, out.Clusters)
	assert.Empty(t, out.GraphvizAttrs.Graph)
}

func TestDetectScopeRestriction(t *testing.T) {
	assert.True(t, DetectScopeRestriction("just a lambda and a dynamodb table, nothing else"))
	assert.True(t, DetectScopeRestriction("ONLY the components I named"))
	assert.False(t, DetectScopeRestriction("a lambda behind an api gateway"))
}

func TestLayerOf_UnknownTypeIsMiddle(t *testing.T) {
	assert.Equal(t, layerDefault, layerOf("some_new_service"))
}
