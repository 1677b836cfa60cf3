// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package advisor

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

type pattern struct {
	Name       string      `yaml:"name"`
	Components []string    `yaml:"components"`
	Edges      [][2]string `yaml:"edges"`
}

func loadPatterns() ([]pattern, error) {
	var file struct {
		Patterns []pattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(patternsYAML, &file); err != nil {
		return nil, fmt.Errorf("parsing pattern catalog: %w", err)
	}
	for _, p := range file.Patterns {
		if p.Name == "" || len(p.Components) == 0 {
			return nil, fmt.Errorf("pattern missing name or components: %+v", p)
		}
		present := make(map[string]bool, len(p.Components))
		for _, c := range p.Components {
			present[c] = true
		}
		for _, e := range p.Edges {
			if !present[e[0]] || !present[e[1]] {
				return nil, fmt.Errorf("pattern %s: edge %v references a type outside the pattern", p.Name, e)
			}
		}
	}
	return file.Patterns, nil
}
