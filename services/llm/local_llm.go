// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// LocalClient talks to any OpenAI-compatible local server (llama.cpp,
// vLLM, Ollama in compatibility mode) over its /v1 API.
type LocalClient struct {
	client *openai.Client
	model  string
}

// NewLocalClient reads LOCAL_LLM_BASE_URL and LOCAL_LLM_MODEL. No API
// key is required; a placeholder satisfies the client library.
func NewLocalClient() (*LocalClient, error) {
	baseURL := os.Getenv("LOCAL_LLM_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("LOCAL_LLM_BASE_URL environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	model := os.Getenv("LOCAL_LLM_MODEL")
	if model == "" {
		model = "default"
	}

	cfg := openai.DefaultConfig("local")
	cfg.BaseURL = baseURL + "/v1"
	slog.Info("Initializing local LLM client", "base_url", cfg.BaseURL, "model", model)
	return &LocalClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate implements the LLMClient interface.
func (l *LocalClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: architectSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Local LLM call failed", "error", err)
		return "", fmt.Errorf("local LLM call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("local LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
