// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
	"github.com/diagramlab/diagramlab/services/diagram/session"
)

// HandleRegenerateFormat is POST /api/regenerate-format: re-render the
// session's current spec in different output formats without touching
// its structure or the undo history.
func HandleRegenerateFormat(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RegenerateFormatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "regenerate", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "regenerate", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}
		for _, f := range req.OutFormats {
			if !f.Valid() {
				failKind(c, "regenerate", http.StatusBadRequest, kindValidation, "unknown out_format "+string(f), nil)
				return
			}
		}

		ctx := c.Request.Context()
		var resp datatypes.ModifyDiagramResponse
		err := deps.Sessions.WithSession(req.SessionID, func(s *session.Session) error {
			// Render a copy; the session keeps its old formats if the
			// render fails.
			updated := s.Spec.Clone()
			updated.OutFormats = req.OutFormats

			syms, err := deps.resolveAll(ctx, updated)
			if err != nil {
				return err
			}
			generationID := uuid.NewString()
			observability.ActiveRenders.Inc()
			artifactNames, code, err := deps.Renderer.Render(ctx, updated, syms, generationID, deps.Artifacts.Dir())
			observability.ActiveRenders.Dec()
			if err != nil {
				return err
			}
			s.Spec = updated
			s.Code = code
			s.GenerationID = generationID
			s.Artifacts = artifactNames

			resp = datatypes.ModifyDiagramResponse{
				DiagramURL:   deps.diagramURL(artifactNames[0]),
				ArtifactURLs: deps.artifactURLs(artifactNames),
				Message:      "Regenerated in the requested formats",
				UpdatedSpec:  updated,
			}
			return nil
		})
		if err != nil {
			fail(c, "regenerate", err)
			return
		}
		succeed(c, "regenerate", http.StatusOK, resp)
	}
}
