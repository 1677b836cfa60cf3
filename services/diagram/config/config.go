// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config reads the diagram service's environment configuration.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-resolved service configuration.
type Config struct {
	Port        string
	BaseURL     string
	OutputDir   string
	FeedbackDir string
	CORSOrigins []string

	SessionTTL        time.Duration
	ArtifactRetention time.Duration
	RenderTimeout     time.Duration

	// LLMTimeout bounds one architect call; RequestTimeout bounds the
	// whole handler pipeline, LLM and render included.
	LLMTimeout     time.Duration
	RequestTimeout time.Duration

	SessionSweepInterval  time.Duration
	ArtifactSweepInterval time.Duration

	// Interpreter is the command that runs emitted renderer code.
	Interpreter []string

	// LLMRPS / LLMBurst shape the architect rate limiter.
	LLMRPS   float64
	LLMBurst int

	LogLevel     string
	OTELEndpoint string
}

// FromEnv reads every setting, applying defaults suited to a local
// single-container deployment.
func FromEnv() Config {
	cfg := Config{
		Port:              envOr("DIAGRAM_PORT", "12220"),
		BaseURL:           strings.TrimSuffix(os.Getenv("DIAGRAM_BASE_URL"), "/"),
		OutputDir:         envOr("DIAGRAM_OUTPUT_DIR", "./diagrams_out"),
		FeedbackDir:       os.Getenv("DIAGRAM_FEEDBACK_DIR"),
		SessionTTL:        envDuration("DIAGRAM_SESSION_TTL", time.Hour),
		ArtifactRetention: envDuration("DIAGRAM_ARTIFACT_RETENTION", 24*time.Hour),
		RenderTimeout:     envDuration("DIAGRAM_RENDER_TIMEOUT", 60*time.Second),
		LLMTimeout:        envDuration("DIAGRAM_LLM_TIMEOUT", 60*time.Second),
		RequestTimeout:    envDuration("DIAGRAM_REQUEST_TIMEOUT", 120*time.Second),

		SessionSweepInterval:  envDuration("DIAGRAM_SESSION_SWEEP_INTERVAL", 5*time.Minute),
		ArtifactSweepInterval: envDuration("DIAGRAM_ARTIFACT_SWEEP_INTERVAL", time.Hour),
		Interpreter:       []string{envOr("DIAGRAM_PYTHON", "python3")},
		LLMRPS:            envFloat("DIAGRAM_LLM_RPS", 1),
		LLMBurst:          envInt("DIAGRAM_LLM_BURST", 3),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		OTELEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if origins := os.Getenv("DIAGRAM_CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}
