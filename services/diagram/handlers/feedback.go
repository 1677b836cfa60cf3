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

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// HandleFeedback is POST /api/feedback.
func HandleFeedback(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "feedback", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "feedback", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}
		if deps.Feedback == nil {
			failKind(c, "feedback", http.StatusServiceUnavailable, "unavailable", "feedback store is not configured", nil)
			return
		}

		entry, err := deps.Feedback.Add(req.SessionID, req.GenerationID, req.Rating, req.Comment)
		if err != nil {
			fail(c, "feedback", err)
			return
		}
		succeed(c, "feedback", http.StatusOK, gin.H{"message": "feedback recorded", "id": entry.ID})
	}
}

// HandleFeedbackStats is GET /api/feedback/stats.
func HandleFeedbackStats(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Feedback == nil {
			failKind(c, "feedback_stats", http.StatusServiceUnavailable, "unavailable", "feedback store is not configured", nil)
			return
		}
		stats, err := deps.Feedback.Aggregate()
		if err != nil {
			fail(c, "feedback_stats", err)
			return
		}
		succeed(c, "feedback_stats", http.StatusOK, stats)
	}
}
