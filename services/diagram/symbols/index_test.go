// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex()
	require.NoError(t, err)
	return ix
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"api-gateway", "apigateway"},
		{"API Gateway", "apigateway"},
		{"api_gateway", "apigateway"},
		{"Lambda", "lambda"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassesIn(t *testing.T) {
	ix := newTestIndex(t)

	classes := ix.ClassesIn("diagrams.aws.compute")
	require.NotEmpty(t, classes)
	assert.True(t, slices.Contains(classes, "Lambda"))
	assert.True(t, slices.Contains(classes, "EC2"))
	assert.True(t, slices.IsSorted(classes))

	assert.Nil(t, ix.ClassesIn("diagrams.aws.nonexistent"))
}

func TestClassesIn_IncludesReexports(t *testing.T) {
	ix := newTestIndex(t)
	// Aliases like ECS/EKS are re-exports of the long class names; the
	// snapshot must include both forms (historical source of misses).
	classes := ix.ClassesIn("diagrams.aws.compute")
	assert.True(t, slices.Contains(classes, "ECS"))
	assert.True(t, slices.Contains(classes, "ElasticContainerService"))
}

func TestFind_Cascade(t *testing.T) {
	ix := newTestIndex(t)

	tests := []struct {
		name       string
		typeID     string
		hintModule string
		wantModule string
		wantClass  string
	}{
		{"exact case-insensitive", "lambda", "", "diagrams.aws.compute", "Lambda"},
		{"exact in hinted module", "dynamodb", "diagrams.aws.database", "diagrams.aws.database", "Dynamodb"},
		{"normalized hyphenated", "api-gateway", "diagrams.aws.network", "diagrams.aws.network", "APIGateway"},
		{"normalized spaced", "step functions", "diagrams.aws.integration", "diagrams.aws.integration", "StepFunctions"},
		{"substring", "cloudfrontdownload", "diagrams.aws.network", "diagrams.aws.network", "CloudFrontDownloadDistribution"},
		{"plural via substring", "lambdas", "diagrams.aws.compute", "diagrams.aws.compute", "Lambda"},
		{"fuzzy typo", "lamda", "diagrams.aws.compute", "diagrams.aws.compute", "Lambda"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ix.Find(datatypes.ProviderAWS, tt.typeID, tt.hintModule)
			require.True(t, ok, "expected a match for %q", tt.typeID)
			assert.Equal(t, tt.wantModule, m.Module)
			assert.Equal(t, tt.wantClass, m.Class)
		})
	}
}

func TestFind_HintedModuleWins(t *testing.T) {
	ix := newTestIndex(t)
	// "redshift" exists in both analytics and database; the hint decides.
	m, ok := ix.Find(datatypes.ProviderAWS, "redshift", "diagrams.aws.database")
	require.True(t, ok)
	assert.Equal(t, "diagrams.aws.database", m.Module)

	m, ok = ix.Find(datatypes.ProviderAWS, "redshift", "diagrams.aws.analytics")
	require.True(t, ok)
	assert.Equal(t, "diagrams.aws.analytics", m.Module)
}

func TestFind_NoMatch(t *testing.T) {
	ix := newTestIndex(t)
	_, ok := ix.Find(datatypes.ProviderAWS, "zqxwvut", "")
	assert.False(t, ok)
	_, ok = ix.Find(datatypes.ProviderAWS, "", "")
	assert.False(t, ok)
}

func TestFind_OtherProviders(t *testing.T) {
	ix := newTestIndex(t)

	m, ok := ix.Find(datatypes.ProviderAzure, "cosmosdb", "")
	require.True(t, ok)
	assert.Equal(t, "diagrams.azure.database", m.Module)
	assert.Equal(t, "CosmosDb", m.Class)

	m, ok = ix.Find(datatypes.ProviderGCP, "bigquery", "")
	require.True(t, ok)
	assert.Equal(t, "BigQuery", m.Class)
}

func TestHasClass(t *testing.T) {
	ix := newTestIndex(t)
	assert.True(t, ix.HasClass("diagrams.aws.ml", "Bedrock"))
	assert.False(t, ix.HasClass("diagrams.aws.ml", "bedrock")) // exact name only
	assert.False(t, ix.HasClass("diagrams.aws.ml", "Nonexistent"))
	assert.False(t, ix.HasClass("diagrams.aws.nope", "Bedrock"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("api-gateway", "APIGateway"))
	assert.Greater(t, Similarity("lambda", "Lambda"), 0.99)
	assert.GreaterOrEqual(t, Similarity("dynamo", "Dynamodb"), FuzzyThreshold)
	assert.Less(t, Similarity("zzzz", "Lambda"), FuzzyThreshold)
}

func TestSuggest(t *testing.T) {
	ix := newTestIndex(t)
	sugg := ix.Suggest(datatypes.ProviderAWS, "dynamo_db", 5)
	require.Len(t, sugg, 5)
	assert.Equal(t, "Dynamodb", sugg[0].Class)
	for i := 1; i < len(sugg); i++ {
		assert.GreaterOrEqual(t, sugg[i-1].Score, sugg[i].Score)
	}
}

func TestLoad_SingleFlight(t *testing.T) {
	ix := newTestIndex(t)

	const goroutines = 32
	results := make([]*moduleClasses, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mc, err := ix.load("diagrams.aws.network")
			require.NoError(t, err)
			results[i] = mc
		}(i)
	}
	wg.Wait()

	// All callers must observe the identical cached set.
	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestRegistry_Load(t *testing.T) {
	reg, err := LoadRegistry()
	require.NoError(t, err)

	module, ok := reg.ModuleFor(datatypes.ProviderAWS, "compute")
	require.True(t, ok)
	assert.Equal(t, "diagrams.aws.compute", module)

	hint, ok := reg.Mapping(datatypes.ProviderAWS, "lambda")
	require.True(t, ok)
	assert.Equal(t, NodeHint{Category: "compute", Class: "Lambda"}, hint)

	_, ok = reg.Mapping(datatypes.ProviderAWS, "nonexistent")
	assert.False(t, ok)

	assert.True(t, reg.IsAmbiguous(datatypes.ProviderAWS, "subnet"))
	assert.False(t, reg.IsAmbiguous(datatypes.ProviderAWS, "lambda"))

	ids := reg.AllTypeIDs(datatypes.ProviderAWS)
	assert.True(t, slices.IsSorted(ids))
	assert.True(t, slices.Contains(ids, "dynamodb"))
}

func TestRegistry_EveryHintResolvable(t *testing.T) {
	// Invariant: every class the registry claims must resolve against the
	// generated snapshot, either in the hinted module or by direct lookup.
	reg, err := LoadRegistry()
	require.NoError(t, err)
	ix := newTestIndex(t)

	for _, provider := range datatypes.KnownProviders {
		for _, typeID := range reg.AllTypeIDs(provider) {
			hint, _ := reg.Mapping(provider, typeID)
			module, ok := reg.ModuleFor(provider, hint.Category)
			require.True(t, ok, "%s/%s: unknown category %q", provider, typeID, hint.Category)
			assert.True(t, ix.HasClass(module, hint.Class),
				"%s/%s: class %q not in %s", provider, typeID, hint.Class, module)
		}
	}
}
