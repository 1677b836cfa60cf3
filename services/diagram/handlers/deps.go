// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the diagram service's HTTP endpoints.
// Handlers are closures over a Deps value so tests can substitute the
// LLM and the render subprocess with stubs.
package handlers

import (
	"context"
	"time"

	"github.com/diagramlab/diagramlab/pkg/logging"
	"github.com/diagramlab/diagramlab/services/diagram/advisor"
	"github.com/diagramlab/diagramlab/services/diagram/artifacts"
	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/engine"
	"github.com/diagramlab/diagramlab/services/diagram/feedback"
	"github.com/diagramlab/diagramlab/services/diagram/resolver"
	"github.com/diagramlab/diagramlab/services/diagram/session"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
)

// Architect is the LLM surface the handlers depend on.
type Architect interface {
	GenerateSpec(ctx context.Context, description string) (*datatypes.ArchitectureSpec, error)
	ModifySpec(ctx context.Context, current *datatypes.ArchitectureSpec, instruction string) (*datatypes.ArchitectureSpec, []string, error)
}

// Renderer is the engine surface the handlers depend on.
type Renderer interface {
	Render(ctx context.Context, spec *datatypes.ArchitectureSpec, syms map[string]engine.Symbol, generationID, outDir string) ([]string, string, error)
	Run(ctx context.Context, code, workDir string) (*engine.RunResult, error)
}

// Deps bundles everything the endpoints need.
type Deps struct {
	Architect Architect
	Renderer  Renderer
	Resolver  *resolver.Resolver
	Advisor   *advisor.Advisor
	Index     *symbols.Index
	Registry  *symbols.Registry
	Sessions  *session.Store
	Artifacts *artifacts.Store
	Feedback  *feedback.Store
	Recorder  *logging.Recorder

	// BaseURL prefixes artifact URLs in responses, e.g.
	// "http://localhost:12220". Empty yields relative URLs.
	BaseURL string

	// LLMTimeout bounds one architect call. Zero means no extra
	// deadline beyond the request context's.
	LLMTimeout time.Duration
}

// llmContext derives the context for an architect call, applying the
// configured timeout on top of the request deadline.
func (d *Deps) llmContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.LLMTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.LLMTimeout)
}

// diagramURL builds the serving URL for one artifact filename.
func (d *Deps) diagramURL(name string) string {
	return d.BaseURL + "/api/diagrams/" + name
}

func (d *Deps) artifactURLs(names []string) []string {
	urls := make([]string, len(names))
	for i, n := range names {
		urls[i] = d.diagramURL(n)
	}
	return urls
}

// resolveAll maps every component to its renderer symbol.
func (d *Deps) resolveAll(ctx context.Context, spec *datatypes.ArchitectureSpec) (map[string]engine.Symbol, error) {
	syms := make(map[string]engine.Symbol, len(spec.Components))
	for _, comp := range spec.Components {
		res, err := d.Resolver.Resolve(ctx, comp, spec.EffectiveProvider(comp))
		if err != nil {
			return nil, err
		}
		syms[comp.ID] = engine.Symbol{Module: res.Module, Class: res.Class}
	}
	return syms, nil
}
