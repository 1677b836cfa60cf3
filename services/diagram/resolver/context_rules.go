// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// contextRulesYAML is baked into the binary so the pattern table cannot
// drift from the code that interprets it.
//
//go:embed context_rules.yaml
var contextRulesYAML []byte

type contextChoice struct {
	Tokens  []string `yaml:"tokens"`
	Resolve string   `yaml:"resolve"`
}

type contextRule struct {
	Type      string          `yaml:"type"`
	Providers []string        `yaml:"providers"`
	Choices   []contextChoice `yaml:"choices"`
	Default   string          `yaml:"default"`
}

type contextRules struct {
	rules []contextRule
}

func loadContextRules() (*contextRules, error) {
	var file struct {
		Rules []contextRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(contextRulesYAML, &file); err != nil {
		return nil, fmt.Errorf("parsing context rules: %w", err)
	}
	for _, rule := range file.Rules {
		if rule.Type == "" || rule.Default == "" {
			return nil, fmt.Errorf("context rule missing type or default: %+v", rule)
		}
	}
	return &contextRules{rules: file.Rules}, nil
}

// apply looks up the rule for (provider, typeID) and picks the first
// choice sharing a token with the component name. Falls back to the
// rule's default when no choice matches. Returns false when no rule
// covers the type id.
func (cr *contextRules) apply(provider datatypes.Provider, typeID string, tokens []string) (string, bool) {
	for _, rule := range cr.rules {
		if rule.Type != typeID {
			continue
		}
		if len(rule.Providers) > 0 && !slices.Contains(rule.Providers, string(provider)) {
			continue
		}
		for _, choice := range rule.Choices {
			for _, tok := range choice.Tokens {
				if slices.Contains(tokens, tok) {
					return choice.Resolve, true
				}
			}
		}
		return rule.Default, true
	}
	return "", false
}
