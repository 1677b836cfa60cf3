// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diagramlab/diagramlab/services/diagram/advisor"
	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
	"github.com/diagramlab/diagramlab/services/diagram/session"
)

// HandleModify is POST /api/modify-diagram: apply a natural-language
// change to the session's spec and re-render. The whole flow runs under
// the session lock, so two modifications of the same session serialize
// and the undo stack stays consistent.
func HandleModify(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ModifyDiagramRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "modify", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "modify", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}

		ctx := c.Request.Context()
		var resp datatypes.ModifyDiagramResponse
		err := deps.Sessions.WithSession(req.SessionID, func(s *session.Session) error {
			llmCtx, cancel := deps.llmContext(ctx)
			defer cancel()
			llmStart := time.Now()
			updated, changes, err := deps.Architect.ModifySpec(llmCtx, s.Spec, req.Modification)
			observability.LLMDuration.WithLabelValues("modify").Observe(time.Since(llmStart).Seconds())
			if err != nil {
				return llmError{err}
			}

			// Advisor adjustments persist across modifications; running
			// it again on its own prior output is a no-op.
			opts := advisor.Options{ScopeRestricted: advisor.DetectScopeRestriction(req.Modification)}
			advised, advisorChanges := deps.Advisor.Advise(updated, opts)
			changes = append(changes, advisorChanges...)

			syms, err := deps.resolveAll(ctx, advised)
			if err != nil {
				return err
			}

			generationID := uuid.NewString()
			renderStart := time.Now()
			observability.ActiveRenders.Inc()
			artifactNames, code, err := deps.Renderer.Render(ctx, advised, syms, generationID, deps.Artifacts.Dir())
			observability.ActiveRenders.Dec()
			observability.RenderDuration.WithLabelValues(string(advised.Provider)).Observe(time.Since(renderStart).Seconds())
			if err != nil {
				return err
			}

			s.PushUndo()
			s.Spec = advised
			s.Code = code
			s.GenerationID = generationID
			s.Artifacts = artifactNames

			resp = datatypes.ModifyDiagramResponse{
				DiagramURL:   deps.diagramURL(artifactNames[0]),
				ArtifactURLs: deps.artifactURLs(artifactNames),
				Message:      "Diagram updated",
				Changes:      changes,
				UpdatedSpec:  advised,
			}
			return nil
		})
		if err != nil {
			var llmErr llmError
			if errors.As(err, &llmErr) {
				failKind(c, "modify", http.StatusBadGateway, kindLLMFailed, llmErr.Error(), nil)
				return
			}
			fail(c, "modify", err)
			return
		}
		succeed(c, "modify", http.StatusOK, resp)
	}
}

// HandleUndo is POST /api/undo-diagram: restore the previous spec and
// re-render it under a fresh generation id.
func HandleUndo(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UndoDiagramRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "undo", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "undo", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}

		ctx := c.Request.Context()
		var resp datatypes.ModifyDiagramResponse
		nothingToUndo := false
		err := deps.Sessions.WithSession(req.SessionID, func(s *session.Session) error {
			if !s.PopUndo() {
				nothingToUndo = true
				return nil
			}

			syms, err := deps.resolveAll(ctx, s.Spec)
			if err != nil {
				return err
			}
			generationID := uuid.NewString()
			observability.ActiveRenders.Inc()
			artifactNames, code, err := deps.Renderer.Render(ctx, s.Spec, syms, generationID, deps.Artifacts.Dir())
			observability.ActiveRenders.Dec()
			if err != nil {
				return err
			}
			s.Code = code
			s.GenerationID = generationID
			s.Artifacts = artifactNames

			resp = datatypes.ModifyDiagramResponse{
				DiagramURL:   deps.diagramURL(artifactNames[0]),
				ArtifactURLs: deps.artifactURLs(artifactNames),
				Message:      "Reverted to the previous diagram",
				UpdatedSpec:  s.Spec,
			}
			return nil
		})
		if err != nil {
			fail(c, "undo", err)
			return
		}
		if nothingToUndo {
			failKind(c, "undo", http.StatusConflict, kindNothingToUndo, "no previous version to restore", nil)
			return
		}
		succeed(c, "undo", http.StatusOK, resp)
	}
}

// llmError marks an architect failure crossing the WithSession boundary
// so it maps to 502 rather than 500.
type llmError struct{ err error }

func (e llmError) Error() string { return e.err.Error() }
func (e llmError) Unwrap() error { return e.err }
