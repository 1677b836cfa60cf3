// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns canned output and records the prompt it saw.
type stubClient struct {
	output string
	err    error
	prompt string
}

func (s *stubClient) Generate(_ context.Context, prompt string, _ GenerationParams) (string, error) {
	s.prompt = prompt
	return s.output, s.err
}

const validSpecJSON = `{
  "title": "Serverless API",
  "provider": "aws",
  "direction": "LR",
  "components": [
    {"id": "gw", "name": "API", "type": "api_gateway"},
    {"id": "fn", "name": "Handler", "type": "lambda"}
  ],
  "connections": [
    {"from_id": "gw", "to_id": "fn"}
  ]
}`

func TestGenerateSpec(t *testing.T) {
	stub := &stubClient{output: validSpecJSON}
	a := NewArchitect(stub)

	spec, err := a.GenerateSpec(context.Background(), "an api gateway calling a lambda")
	require.NoError(t, err)
	assert.Equal(t, "Serverless API", spec.Title)
	assert.Len(t, spec.Components, 2)
	assert.Contains(t, stub.prompt, "an api gateway calling a lambda")
}

func TestGenerateSpec_ToleratesFencesAndProse(t *testing.T) {
	stub := &stubClient{output: "Sure! Here is the design:\n```json\n" + validSpecJSON + "\n```\nLet me know."}
	a := NewArchitect(stub)

	spec, err := a.GenerateSpec(context.Background(), "desc")
	require.NoError(t, err)
	assert.Equal(t, "Serverless API", spec.Title)
}

func TestGenerateSpec_RejectsInvalidSpec(t *testing.T) {
	// Dangling connection endpoint must fail validation.
	stub := &stubClient{output: `{
  "title": "Broken",
  "provider": "aws",
  "components": [{"id": "a", "name": "A", "type": "lambda"}],
  "connections": [{"from_id": "a", "to_id": "ghost"}]
}`}
	a := NewArchitect(stub)
	_, err := a.GenerateSpec(context.Background(), "desc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid spec")
}

func TestGenerateSpec_RejectsNonJSON(t *testing.T) {
	stub := &stubClient{output: "I cannot help with that."}
	a := NewArchitect(stub)
	_, err := a.GenerateSpec(context.Background(), "desc")
	require.Error(t, err)
}

func TestModifySpec(t *testing.T) {
	stub := &stubClient{output: `{"spec": ` + validSpecJSON + `, "changes": ["added nothing really"]}`}
	a := NewArchitect(stub)

	spec, err := a.GenerateSpec(context.Background(), "seed")
	require.NoError(t, err)

	updated, changes, err := a.ModifySpec(context.Background(), spec, "rename the title")
	require.NoError(t, err)
	assert.Equal(t, "Serverless API", updated.Title)
	assert.Equal(t, []string{"added nothing really"}, changes)
	assert.Contains(t, stub.prompt, "rename the title")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, false},
		{"braces in strings", `{"a": "}{"}`, `{"a": "}{"}`, false},
		{"leading prose", `result: {"a": 1} trailing`, `{"a": 1}`, false},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"no object", "nothing here", "", true},
		{"unterminated", `{"a": 1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimited_PassesThrough(t *testing.T) {
	stub := &stubClient{output: "ok"}
	rl := NewRateLimited(stub, 100, 10)
	out, err := rl.Generate(context.Background(), "p", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRateLimited_CancelledWait(t *testing.T) {
	stub := &stubClient{output: "ok"}
	// Zero sustained rate with burst 1: the second call must wait forever.
	rl := NewRateLimited(stub, 0, 1)
	_, err := rl.Generate(context.Background(), "p", GenerationParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rl.Generate(ctx, "p", GenerationParams{})
	require.Error(t, err)
}
