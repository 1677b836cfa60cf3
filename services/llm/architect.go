// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// specSchema is shown to the model verbatim. Keeping it a plain string
// rather than deriving it from the Go types makes prompt changes
// reviewable in one place.
const specSchema = `{
  "title": "short diagram title",
  "provider": "aws | azure | gcp",
  "direction": "LR | TB",
  "components": [
    {"id": "snake_case_unique", "name": "Display Name", "type": "snake_case service type, e.g. lambda, api_gateway, dynamodb, ec2, rds, s3, sqs, vpc, public_subnet"}
  ],
  "connections": [
    {"from_id": "id", "to_id": "id", "label": "optional verb", "direction": "forward | backward | bidirectional"}
  ],
  "clusters": [
    {"id": "snake_case_unique", "name": "Group Name", "component_ids": ["id"], "parent_id": "optional enclosing cluster id"}
  ]
}`

const generatePromptTemplate = `Design a cloud architecture for this description:

%s

Respond with exactly one JSON object matching this schema, no prose, no markdown fences:

%s

Rules:
- use the provider the description implies, default aws
- component types are lowercase snake_case service names
- every connection endpoint must reference a component id
- put VPC-resident components (ec2, rds, subnets) into clusters that mirror the network layout`

const modifyPromptTemplate = `Here is the current architecture spec:

%s

Apply this change request:

%s

Respond with exactly one JSON object, no prose, no markdown fences:

{"spec": <the complete updated spec, same schema as the input>, "changes": ["one short sentence per change made"]}

Rules:
- keep every component the change request does not mention
- keep existing ids stable so the user's references stay valid
- never drop clusters or connections unless asked`

// Architect turns natural language into validated ArchitectureSpecs via
// an LLM backend.
type Architect struct {
	client LLMClient
	log    *slog.Logger
}

// NewArchitect wraps a backend client.
func NewArchitect(client LLMClient) *Architect {
	return &Architect{client: client, log: slog.Default()}
}

func architectParams() GenerationParams {
	var temp float32 = 0.2
	maxTokens := 4096
	return GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}
}

// GenerateSpec produces a spec from a description. The model output is
// validated before it is returned; a malformed answer is an error, never
// a half-built spec.
func (a *Architect) GenerateSpec(ctx context.Context, description string) (*datatypes.ArchitectureSpec, error) {
	prompt := fmt.Sprintf(generatePromptTemplate, description, specSchema)
	raw, err := a.client.Generate(ctx, prompt, architectParams())
	if err != nil {
		return nil, err
	}

	payload, err := ExtractJSON(raw)
	if err != nil {
		a.log.Warn("architect returned non-JSON output", "length", len(raw))
		return nil, fmt.Errorf("architect output: %w", err)
	}
	var spec datatypes.ArchitectureSpec
	if err := json.Unmarshal([]byte(payload), &spec); err != nil {
		return nil, fmt.Errorf("decoding architect output: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("architect produced invalid spec: %w", err)
	}
	return &spec, nil
}

// ModifySpec applies a change request to an existing spec and returns
// the updated spec plus the model's change summary.
func (a *Architect) ModifySpec(ctx context.Context, current *datatypes.ArchitectureSpec, instruction string) (*datatypes.ArchitectureSpec, []string, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding current spec: %w", err)
	}
	prompt := fmt.Sprintf(modifyPromptTemplate, currentJSON, instruction)
	raw, err := a.client.Generate(ctx, prompt, architectParams())
	if err != nil {
		return nil, nil, err
	}

	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("architect output: %w", err)
	}
	var envelope struct {
		Spec    *datatypes.ArchitectureSpec `json:"spec"`
		Changes []string                    `json:"changes"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, nil, fmt.Errorf("decoding architect output: %w", err)
	}
	if envelope.Spec == nil {
		return nil, nil, fmt.Errorf("architect output has no spec")
	}
	if err := envelope.Spec.Validate(); err != nil {
		return nil, nil, fmt.Errorf("architect produced invalid spec: %w", err)
	}
	return envelope.Spec, envelope.Changes, nil
}

// ExtractJSON pulls the first complete JSON object out of model output,
// tolerating markdown fences and surrounding prose.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object")
}
