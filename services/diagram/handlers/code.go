// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diagramlab/diagramlab/pkg/validation"
	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/engine"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
)

// artifactExtensions are the renderer outputs worth collecting after an
// execute-code run.
var artifactExtensions = map[string]bool{
	".png": true, ".svg": true, ".pdf": true, ".dot": true,
}

// HandleExecuteCode is POST /api/execute-code: run user-edited renderer
// code in an isolated scratch directory and publish whatever artifacts
// it produced. Static validation gates the run; the subprocess sandbox
// is the backstop, not the defense.
func HandleExecuteCode(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ExecuteCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "execute", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "execute", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}
		if issues := engine.ValidateCode(req.Code); len(issues) > 0 {
			errs, suggestions := splitIssues(issues)
			succeed(c, "execute", http.StatusOK, datatypes.ExecuteCodeResponse{
				Message:  "code rejected by validation",
				Errors:   errs,
				Warnings: suggestions,
			})
			return
		}

		scratch, err := os.MkdirTemp(deps.Artifacts.Dir(), "exec-")
		if err != nil {
			fail(c, "execute", fmt.Errorf("creating scratch directory: %w", err))
			return
		}
		defer os.RemoveAll(scratch)

		observability.ActiveRenders.Inc()
		result, err := deps.Renderer.Run(c.Request.Context(), req.Code, scratch)
		observability.ActiveRenders.Dec()
		if err != nil {
			fail(c, "execute", err)
			return
		}
		if result.ExitCode != 0 {
			succeed(c, "execute", http.StatusOK, datatypes.ExecuteCodeResponse{
				Message: fmt.Sprintf("execution failed with exit code %d", result.ExitCode),
				Errors:  splitLines(result.Stderr),
			})
			return
		}

		names, err := publishArtifacts(scratch, deps.Artifacts.Dir())
		if err != nil {
			fail(c, "execute", err)
			return
		}
		if len(names) == 0 {
			succeed(c, "execute", http.StatusOK, datatypes.ExecuteCodeResponse{
				Message: "code ran but produced no artifacts",
				Errors:  []string{"no output file was written; check the filename and outformat arguments"},
			})
			return
		}

		succeed(c, "execute", http.StatusOK, datatypes.ExecuteCodeResponse{
			DiagramURL:   deps.diagramURL(names[0]),
			ArtifactURLs: deps.artifactURLs(names),
			Message:      "Executed successfully",
		})
	}
}

// publishArtifacts moves rendered files out of the scratch directory
// into the serving directory under sanitized, collision-free names.
func publishArtifacts(scratch, outDir string) ([]string, error) {
	entries, err := os.ReadDir(scratch)
	if err != nil {
		return nil, err
	}
	suffix := uuid.NewString()[:8]
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !artifactExtensions[ext] {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		name := validation.SanitizeFilename(stem) + "_" + suffix + ext
		if err := os.Rename(filepath.Join(scratch, e.Name()), filepath.Join(outDir, name)); err != nil {
			return nil, fmt.Errorf("publishing artifact %s: %w", e.Name(), err)
		}
		names = append(names, name)
	}
	return names, nil
}

// HandleValidateCode is POST /api/validate-code: static checks only,
// nothing executes.
func HandleValidateCode() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ValidateCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failKind(c, "validate", http.StatusBadRequest, kindValidation, "malformed request body: "+err.Error(), nil)
			return
		}
		if err := datatypes.ValidateRequest(&req); err != nil {
			failKind(c, "validate", http.StatusBadRequest, kindValidation, err.Error(), nil)
			return
		}

		issues := engine.ValidateCode(req.Code)
		errs, suggestions := splitIssues(issues)
		succeed(c, "validate", http.StatusOK, datatypes.ValidateCodeResponse{
			Valid:       len(issues) == 0,
			Errors:      errs,
			Suggestions: suggestions,
		})
	}
}

func splitIssues(issues []engine.ValidationIssue) (errs, suggestions []string) {
	errs = make([]string, 0, len(issues))
	suggestions = make([]string, 0, len(issues))
	for _, is := range issues {
		errs = append(errs, is.Message)
		if is.Suggestion != "" {
			suggestions = append(suggestions, is.Suggestion)
		}
	}
	return errs, suggestions
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
