// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Size Limits
// =============================================================================

const (
	// MaxDescriptionBytes bounds the natural-language description.
	// Byte length, not rune count, to cap memory on hostile payloads.
	MaxDescriptionBytes = 16 * 1024

	// MaxCodeBytes bounds user-supplied renderer source for the
	// execute-code and validate-code endpoints.
	MaxCodeBytes = 64 * 1024

	// MaxFeedbackBytes bounds a feedback comment.
	MaxFeedbackBytes = 8 * 1024
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// requestValidate validates inbound request bodies. Initialized in init()
// with the custom byte-length validators.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("descbytes", maxBytes(MaxDescriptionBytes))
	_ = requestValidate.RegisterValidation("codebytes", maxBytes(MaxCodeBytes))
	_ = requestValidate.RegisterValidation("feedbackbytes", maxBytes(MaxFeedbackBytes))
}

// maxBytes builds a validator.Func enforcing a byte-length ceiling on a
// string field.
func maxBytes(limit int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= limit
	}
}

// =============================================================================
// Requests
// =============================================================================

// GenerateDiagramRequest is the body of POST /api/generate-diagram.
type GenerateDiagramRequest struct {
	Description   string        `json:"description" validate:"required,descbytes"`
	Provider      Provider      `json:"provider,omitempty" validate:"omitempty,oneof=aws azure gcp"`
	OutFormats    OutFormats    `json:"out_format,omitempty"`
	Direction     Direction     `json:"direction,omitempty" validate:"omitempty,oneof=LR TB BT RL"`
	GraphvizAttrs GraphvizAttrs `json:"graphviz_attrs,omitempty"`
}

// ModifyDiagramRequest is the body of POST /api/modify-diagram.
type ModifyDiagramRequest struct {
	SessionID    string `json:"session_id" validate:"required,uuid4"`
	Modification string `json:"modification" validate:"required,descbytes"`
}

// UndoDiagramRequest is the body of POST /api/undo-diagram.
type UndoDiagramRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
}

// RegenerateFormatRequest is the body of POST /api/regenerate-format.
type RegenerateFormatRequest struct {
	SessionID  string     `json:"session_id" validate:"required,uuid4"`
	OutFormats OutFormats `json:"out_format" validate:"required,min=1"`
}

// ExecuteCodeRequest is the body of POST /api/execute-code.
type ExecuteCodeRequest struct {
	Code       string     `json:"code" validate:"required,codebytes"`
	Provider   Provider   `json:"provider,omitempty" validate:"omitempty,oneof=aws azure gcp"`
	Title      string     `json:"title,omitempty" validate:"omitempty,max=200"`
	OutFormats OutFormats `json:"out_format,omitempty"`
}

// ValidateCodeRequest is the body of POST /api/validate-code.
type ValidateCodeRequest struct {
	Code string `json:"code" validate:"required,codebytes"`
}

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	SessionID    string `json:"session_id,omitempty" validate:"omitempty,uuid4"`
	GenerationID string `json:"generation_id,omitempty"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      string `json:"comment,omitempty" validate:"omitempty,feedbackbytes"`
}

// ValidateRequest runs struct-tag validation on any request body.
// Returns a validator error suitable for a 400 response.
func ValidateRequest(req any) error {
	return requestValidate.Struct(req)
}

// =============================================================================
// Responses
// =============================================================================

// GenerateDiagramResponse is returned by generate-diagram.
type GenerateDiagramResponse struct {
	DiagramURL    string   `json:"diagram_url"`
	ArtifactURLs  []string `json:"artifact_urls,omitempty"`
	Message       string   `json:"message"`
	SessionID     string   `json:"session_id"`
	GenerationID  string   `json:"generation_id"`
	GeneratedCode string   `json:"generated_code,omitempty"`
}

// ModifyDiagramResponse is returned by modify-diagram and undo-diagram.
type ModifyDiagramResponse struct {
	DiagramURL   string            `json:"diagram_url"`
	ArtifactURLs []string          `json:"artifact_urls,omitempty"`
	Message      string            `json:"message"`
	Changes      []string          `json:"changes,omitempty"`
	UpdatedSpec  *ArchitectureSpec `json:"updated_spec,omitempty"`
}

// ExecuteCodeResponse is returned by execute-code.
type ExecuteCodeResponse struct {
	DiagramURL   string   `json:"diagram_url"`
	ArtifactURLs []string `json:"artifact_urls,omitempty"`
	Message      string   `json:"message"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ValidateCodeResponse is returned by validate-code.
type ValidateCodeResponse struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Suggestions []string `json:"suggestions"`
}

// CompletionsResponse is returned by GET /api/completions/{provider}.
type CompletionsResponse struct {
	Classes   map[string][]string `json:"classes"`
	Imports   map[string]string   `json:"imports"`
	Keywords  []string            `json:"keywords"`
	Operators []string            `json:"operators"`
}

// ErrorResponse is the uniform error body. Details is kind-specific: for
// resolver errors it carries the diagnostic payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details any    `json:"details,omitempty"`
}
