// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm wraps the language-model backends that turn descriptions
// of cloud architectures into structured specs.
package llm

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/time/rate"
)

// GenerationParams tune a single generation call. Nil fields use the
// backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient is the interface every backend implements.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// NewFromEnv selects a backend: a local OpenAI-compatible server when
// LOCAL_LLM_BASE_URL is set, OpenAI otherwise.
func NewFromEnv() (LLMClient, error) {
	if os.Getenv("LOCAL_LLM_BASE_URL") != "" {
		return NewLocalClient()
	}
	return NewOpenAIClient()
}

// RateLimited wraps a client with a token-bucket limiter so a burst of
// generate requests cannot exhaust the provider quota.
type RateLimited struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimited allows rps sustained requests per second with the given
// burst.
func NewRateLimited(inner LLMClient, rps float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate waits for limiter capacity, then delegates. Returns the
// context error when the wait is cancelled.
func (r *RateLimited) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, prompt, params)
}
