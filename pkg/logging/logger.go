// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for diagramlab services.
//
// The package is built on Go's standard library slog. Services log JSON to
// stdout (container-friendly); when stdout is a terminal a human-readable
// text handler is used instead. A Recorder can be layered on top to capture
// the log lines of a single request for later retrieval via the
// error-logs endpoint.
//
// # Basic Usage
//
//	logger := logging.Setup(logging.Config{Level: "info", Service: "diagram"})
//	logger.Info("render complete", "session_id", id)
//
// # Request Capture
//
//	rec := logging.NewRecorder(256, 64)
//	logger := logging.Setup(logging.Config{Level: "info", Recorder: rec})
//	// middleware tags the context:
//	ctx := logging.WithRequestID(ctx, requestID)
//	logger.InfoContext(ctx, "resolving components")
//	// later:
//	lines := rec.Lines(requestID)
//
// # Thread Safety
//
// All types are safe for concurrent use.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config controls handler construction in Setup.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Empty means info.
	Level string

	// Service is attached to every record as the "service" attribute.
	Service string

	// Recorder, when non-nil, additionally captures records tagged with a
	// request id (see WithRequestID) for the error-logs endpoint.
	Recorder *Recorder

	// ForceJSON disables the TTY text-handler fallback. Used in tests.
	ForceJSON bool
}

// ParseLevel converts a config string to a slog.Level. Unknown values
// fall back to info rather than failing startup.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the service logger and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var base slog.Handler
	if !cfg.ForceJSON && isatty.IsTerminal(os.Stdout.Fd()) {
		base = slog.NewTextHandler(os.Stdout, opts)
	} else {
		base = slog.NewJSONHandler(os.Stdout, opts)
	}
	if cfg.Recorder != nil {
		base = &teeHandler{primary: base, recorder: cfg.Recorder}
	}

	logger := slog.New(base)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	slog.SetDefault(logger)
	return logger
}

// requestIDKey is the context key carrying the current request id.
type requestIDKey struct{}

// WithRequestID tags ctx with a request id. Records logged through a
// Recorder-backed handler with this context are captured under that id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom extracts the request id from ctx, or "" when untagged.
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// teeHandler forwards every record to the primary handler and mirrors
// request-tagged records into the recorder.
type teeHandler struct {
	primary  slog.Handler
	recorder *Recorder
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RequestIDFrom(ctx); id != "" {
		h.recorder.record(id, r)
	}
	return h.primary.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: h.primary.WithAttrs(attrs), recorder: h.recorder}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: h.primary.WithGroup(name), recorder: h.recorder}
}
