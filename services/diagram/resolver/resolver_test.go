// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	ix, err := symbols.NewIndex()
	require.NoError(t, err)
	reg, err := symbols.LoadRegistry()
	require.NoError(t, err)
	r, err := New(ix, reg)
	require.NoError(t, err)
	return r
}

func TestResolve_ExactNames(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	res, err := r.Resolve(ctx, datatypes.Component{ID: "fn", Name: "Handler", Type: "lambda"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "diagrams.aws.compute", res.Module)
	assert.Equal(t, "Lambda", res.Class)

	res, err = r.Resolve(ctx, datatypes.Component{ID: "db", Name: "Table", Type: "dynamodb"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "diagrams.aws.database", res.Module)
	assert.Equal(t, "Dynamodb", res.Class)
}

func TestResolve_AmbiguousSubnetByContext(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	res, err := r.Resolve(ctx, datatypes.Component{ID: "s1", Name: "Public Subnet", Type: "subnet"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "PublicSubnet", res.Class)
	assert.Equal(t, "public_subnet", res.TypeID)

	res, err = r.Resolve(ctx, datatypes.Component{ID: "s2", Name: "Private Subnet", Type: "subnet"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "PrivateSubnet", res.Class)

	// No context tokens at all: the rule default applies.
	res, err = r.Resolve(ctx, datatypes.Component{ID: "s3", Name: "Subnet A", Type: "subnet"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "PrivateSubnet", res.Class)
}

func TestResolve_AmbiguousDatabaseByContext(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		wantClass string
	}{
		{"Relational Database", "RDS"},
		{"Postgres Database", "RDS"},
		{"NoSQL Document Store", "Dynamodb"},
		{"Orders DB", "RDS"}, // default
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(ctx, datatypes.Component{ID: "x", Name: tt.name, Type: "database"}, datatypes.ProviderAWS)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClass, res.Class)
		})
	}
}

func TestResolve_AmbiguousFunctionByContext(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	res, err := r.Resolve(ctx, datatypes.Component{ID: "f1", Name: "Serverless Handler", Type: "function"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "Lambda", res.Class)

	res, err = r.Resolve(ctx, datatypes.Component{ID: "f2", Name: "Docker Container Worker", Type: "function"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "ECS", res.Class)

	res, err = r.Resolve(ctx, datatypes.Component{ID: "f3", Name: "K8s Job", Type: "function"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "EKS", res.Class)
}

func TestResolve_FuzzyTypeID(t *testing.T) {
	r := newTestResolver(t)
	// "dynamo-db" is not a registry id, but fuzzy-matches "dynamodb".
	res, err := r.Resolve(context.Background(),
		datatypes.Component{ID: "d", Name: "State", Type: "dynamo-db"}, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "Dynamodb", res.Class)
}

func TestResolve_Memoized(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()
	comp := datatypes.Component{ID: "fn", Name: "Handler", Type: "lambda"}

	first, err := r.Resolve(ctx, comp, datatypes.ProviderAWS)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, comp, datatypes.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	if _, ok := r.cache.Load(cacheKey{
		provider: datatypes.ProviderAWS, typeID: "lambda", nameHash: hashName("Handler"),
	}); !ok {
		t.Error("expected resolution to be memoized")
	}
}

func TestResolve_DiagnosticFailure(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.Resolve(context.Background(),
		datatypes.Component{ID: "x", Name: "Mystery", Type: "zq_gadget_99"}, datatypes.ProviderAWS)
	require.Error(t, err)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "zq_gadget_99", resErr.TypeID)
	assert.Len(t, resErr.Suggestions, 5)
	assert.NotEmpty(t, resErr.Available)
}

func TestResolve_OtherProvidersPassThrough(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	res, err := r.Resolve(ctx, datatypes.Component{ID: "db", Name: "Catalog", Type: "cosmos_db"}, datatypes.ProviderAzure)
	require.NoError(t, err)
	assert.Equal(t, "CosmosDb", res.Class)

	res, err = r.Resolve(ctx, datatypes.Component{ID: "q", Name: "Events", Type: "pubsub"}, datatypes.ProviderGCP)
	require.NoError(t, err)
	// The table exports both spellings; lookup returns the sorted-first one.
	assert.Equal(t, "PubSub", res.Class)
}

func TestCheckDescription(t *testing.T) {
	valid := []string{
		"Lambda calling DynamoDB",
		"a three tier web application on AWS",
		"kubernetes cluster with a database",
	}
	for _, d := range valid {
		assert.NoError(t, CheckDescription(d), d)
	}

	invalid := []string{
		"tell me a joke about cats",
		"what is the weather tomorrow",
		"",
	}
	for _, d := range invalid {
		err := CheckDescription(d)
		require.Error(t, err, d)
		var rejected *InputRejectedError
		assert.True(t, errors.As(err, &rejected))
	}
}

func TestContextRules_UnknownTypeNoRule(t *testing.T) {
	rules, err := loadContextRules()
	require.NoError(t, err)
	_, ok := rules.apply(datatypes.ProviderAWS, "lambda", []string{"anything"})
	assert.False(t, ok)
}
