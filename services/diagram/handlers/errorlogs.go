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
)

// HandleErrorLogs is GET /api/error-logs/:request_id: the captured log
// lines for one recent request, for debugging a failed generation
// without shell access to the server.
func HandleErrorLogs(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("request_id")
		lines := deps.Recorder.Lines(requestID)
		if len(lines) == 0 {
			failKind(c, "error_logs", http.StatusNotFound, "not_found",
				"no captured logs for that request id (capture is bounded; older requests age out)", nil)
			return
		}
		succeed(c, "error_logs", http.StatusOK, gin.H{
			"request_id": requestID,
			"lines":      lines,
		})
	}
}
