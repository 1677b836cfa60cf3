// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/diagramlab/diagramlab/services/diagram/handlers"
	"github.com/diagramlab/diagramlab/services/diagram/middleware"
)

// SetupRoutes wires every endpoint onto the router. requestTimeout
// bounds each request's context; zero disables the deadline.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, corsOrigins []string, requestTimeout time.Duration) {
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.RequestTimeout(requestTimeout))
	router.Use(otelgin.Middleware("diagram-service"))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/generate-diagram", handlers.HandleGenerate(deps))
		api.POST("/modify-diagram", handlers.HandleModify(deps))
		api.POST("/undo-diagram", handlers.HandleUndo(deps))
		api.POST("/regenerate-format", handlers.HandleRegenerateFormat(deps))
		api.POST("/execute-code", handlers.HandleExecuteCode(deps))
		api.POST("/validate-code", handlers.HandleValidateCode())
		api.GET("/completions/:provider", handlers.HandleCompletions(deps))
		api.GET("/examples", handlers.HandleExamples())
		api.GET("/diagrams/:filename", handlers.HandleGetDiagram(deps))
		api.GET("/error-logs/:request_id", handlers.HandleErrorLogs(deps))
		// Feedback routes
		api.POST("/feedback", handlers.HandleFeedback(deps))
		api.GET("/feedback/stats", handlers.HandleFeedbackStats(deps))
	}
}
