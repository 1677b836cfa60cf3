// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diagramlab/diagramlab/services/diagram/advisor"
	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
	"github.com/diagramlab/diagramlab/services/diagram/resolver"
	"github.com/diagramlab/diagramlab/services/diagram/session"
)

// HandleGenerate is POST /api/generate-diagram: description in, rendered
// diagram plus a new session out.
func HandleGenerate(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GenerateDiagramRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "generate", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "generate", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}
		if err := resolver.CheckDescription(req.Description); err != nil {
			fail(c, "generate", err)
			return
		}

		ctx := c.Request.Context()
		llmCtx, cancel := deps.llmContext(ctx)
		defer cancel()
		llmStart := time.Now()
		spec, err := deps.Architect.GenerateSpec(llmCtx, req.Description)
		observability.LLMDuration.WithLabelValues("generate").Observe(time.Since(llmStart).Seconds())
		if err != nil {
			failKind(c, "generate", http.StatusBadGateway, kindLLMFailed, err.Error(), nil)
			return
		}

		applyRequestOverrides(spec, &req)
		if err := spec.Validate(); err != nil {
			failKind(c, "generate", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}

		opts := advisor.Options{ScopeRestricted: advisor.DetectScopeRestriction(req.Description)}
		advised, changes := deps.Advisor.Advise(spec, opts)

		syms, err := deps.resolveAll(ctx, advised)
		if err != nil {
			fail(c, "generate", err)
			return
		}

		generationID := uuid.NewString()
		renderStart := time.Now()
		observability.ActiveRenders.Inc()
		artifactNames, code, err := deps.Renderer.Render(ctx, advised, syms, generationID, deps.Artifacts.Dir())
		observability.ActiveRenders.Dec()
		observability.RenderDuration.WithLabelValues(string(advised.Provider)).Observe(time.Since(renderStart).Seconds())
		if err != nil {
			fail(c, "generate", err)
			return
		}

		sessionID := uuid.NewString()
		deps.Sessions.Create(sessionID)
		_ = deps.Sessions.WithSession(sessionID, func(s *session.Session) error {
			s.Spec = advised
			s.Code = code
			s.GenerationID = generationID
			s.Artifacts = artifactNames
			return nil
		})
		observability.SessionsLive.Set(float64(deps.Sessions.Len()))

		succeed(c, "generate", http.StatusOK, datatypes.GenerateDiagramResponse{
			DiagramURL:    deps.diagramURL(artifactNames[0]),
			ArtifactURLs:  deps.artifactURLs(artifactNames),
			Message:       generateMessage(advised, changes),
			SessionID:     sessionID,
			GenerationID:  generationID,
			GeneratedCode: code,
		})
	}
}

// applyRequestOverrides lets explicit request fields win over what the
// model chose, then fills the defaults the renderer needs.
func applyRequestOverrides(spec *datatypes.ArchitectureSpec, req *datatypes.GenerateDiagramRequest) {
	if req.Provider != "" {
		spec.Provider = req.Provider
	}
	if len(req.OutFormats) > 0 {
		spec.OutFormats = req.OutFormats
	}
	// The natural-language path always renders left-to-right. The field
	// is still accepted and validated so existing clients keep working.
	spec.Direction = datatypes.DirectionLR
	if len(spec.OutFormats) == 0 {
		spec.OutFormats = datatypes.OutFormats{datatypes.FormatPNG}
	}
	mergeAttrs(&spec.GraphvizAttrs, req.GraphvizAttrs)
}

// mergeAttrs copies request attributes over the spec's; the request is
// the user speaking directly, so it wins.
func mergeAttrs(dst *datatypes.GraphvizAttrs, src datatypes.GraphvizAttrs) {
	if len(src.Graph) > 0 {
		if dst.Graph == nil {
			dst.Graph = make(map[string]string, len(src.Graph))
		}
		maps.Copy(dst.Graph, src.Graph)
	}
	if len(src.Node) > 0 {
		if dst.Node == nil {
			dst.Node = make(map[string]string, len(src.Node))
		}
		maps.Copy(dst.Node, src.Node)
	}
	if len(src.Edge) > 0 {
		if dst.Edge == nil {
			dst.Edge = make(map[string]string, len(src.Edge))
		}
		maps.Copy(dst.Edge, src.Edge)
	}
}

func generateMessage(spec *datatypes.ArchitectureSpec, changes []string) string {
	msg := fmt.Sprintf("Generated %q with %d components", spec.Title, len(spec.Components))
	if len(changes) > 0 {
		msg += fmt.Sprintf("; advisor made %d adjustments", len(changes))
	}
	return msg
}
