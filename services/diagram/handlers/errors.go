// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/engine"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
	"github.com/diagramlab/diagramlab/services/diagram/resolver"
	"github.com/diagramlab/diagramlab/services/diagram/session"
)

// Error kinds on the wire. Clients branch on kind, not on message text.
const (
	kindValidation    = "validation"
	kindInputRejected = "input_rejected"
	kindResolver      = "resolver"
	kindSessionGone   = "session_not_found"
	kindNothingToUndo = "nothing_to_undo"
	kindRenderFailed  = "render_failed"
	kindTimeout       = "timeout"
	kindLLMFailed     = "llm_failed"
	kindInternal      = "internal"
)

// fail maps a domain error onto status, kind and details, writes the
// uniform error body and records the outcome metric.
func fail(c *gin.Context, endpoint string, err error) {
	status, kind := http.StatusInternalServerError, kindInternal
	var details any

	var inputErr *resolver.InputRejectedError
	var resErr *resolver.ResolutionError
	var renderErr *engine.RenderError
	switch {
	case errors.As(err, &inputErr):
		status, kind = http.StatusBadRequest, kindInputRejected
		details = inputErr
	case errors.As(err, &resErr):
		status, kind = http.StatusBadRequest, kindResolver
		details = resErr
	case errors.Is(err, session.ErrNotFound):
		status, kind = http.StatusNotFound, kindSessionGone
	case errors.As(err, &renderErr):
		if renderErr.TimedOut {
			status, kind = http.StatusGatewayTimeout, kindTimeout
		} else {
			status, kind = http.StatusInternalServerError, kindRenderFailed
		}
		details = renderErr
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			slog.String("endpoint", endpoint),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	} else {
		slog.WarnContext(c.Request.Context(), "request rejected",
			slog.String("endpoint", endpoint),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	}
	observability.RequestsTotal.WithLabelValues(endpoint, kind).Inc()
	c.JSON(status, datatypes.ErrorResponse{Error: err.Error(), Kind: kind, Details: details})
}

// failKind writes an error with an explicit status and kind, for cases
// that do not flow from a typed domain error.
func failKind(c *gin.Context, endpoint string, status int, kind, message string, details any) {
	observability.RequestsTotal.WithLabelValues(endpoint, kind).Inc()
	c.JSON(status, datatypes.ErrorResponse{Error: message, Kind: kind, Details: details})
}

// succeed records the outcome metric and writes the response body.
func succeed(c *gin.Context, endpoint string, status int, body any) {
	observability.RequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	c.JSON(status, body)
}
