// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/diagramlab/diagramlab/pkg/validation"
)

// HandleGetDiagram is GET /api/diagrams/:filename. The filename is
// re-checked at serving time: artifacts were written with sanitized
// names, so anything that fails the same checks here was never written
// by us.
func HandleGetDiagram(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		if validation.IsTraversal(name) {
			failKind(c, "serve", http.StatusForbidden, "forbidden", "path traversal rejected", nil)
			return
		}
		if !validation.IsCleanFilename(name) {
			failKind(c, "serve", http.StatusBadRequest, kindValidation, "malformed filename", nil)
			return
		}

		path, err := deps.Artifacts.Resolve(name)
		if err != nil {
			failKind(c, "serve", http.StatusForbidden, "forbidden", "path traversal rejected", nil)
			return
		}
		if _, err := os.Stat(path); err != nil {
			failKind(c, "serve", http.StatusNotFound, "not_found", "no such diagram", nil)
			return
		}
		c.File(path)
	}
}
