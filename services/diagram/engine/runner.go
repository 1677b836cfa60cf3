// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

var renderTracer = otel.Tracer("engine.runner")

const (
	// DefaultRenderTimeout bounds one interpreter run. Graphviz layout on
	// a pathological graph can spin; the service must not.
	DefaultRenderTimeout = 60 * time.Second

	// maxCapturedOutput bounds stdout/stderr capture per stream.
	maxCapturedOutput = 64 * 1024
)

var ErrRenderTimeout = errors.New("render timed out")

// RenderError carries the interpreter's diagnostics back to the caller.
type RenderError struct {
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
	TimedOut bool   `json:"timed_out"`
}

func (e *RenderError) Error() string {
	if e.TimedOut {
		return "render timed out"
	}
	return fmt.Sprintf("render failed with exit code %d", e.ExitCode)
}

// Runner executes emitted renderer code in a subprocess.
//
// Thread Safety: safe for concurrent use; each Run call is independent.
type Runner struct {
	interpreter []string
	timeout     time.Duration
	log         *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithInterpreter overrides the interpreter command line. Tests use a
// shell script; production uses python3 from the render venv.
func WithInterpreter(argv ...string) RunnerOption {
	return func(r *Runner) { r.interpreter = argv }
}

// WithTimeout overrides the per-render timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// NewRunner builds a Runner with python3 and the default timeout.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		interpreter: []string{"python3"},
		timeout:     DefaultRenderTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunResult is the raw outcome of one interpreter invocation.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run writes code to a script in workDir and executes it there. The
// subprocess gets its own process group so a timeout kills the whole
// tree, dot included, not just the interpreter.
func (r *Runner) Run(ctx context.Context, code, workDir string) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	script := filepath.Join(workDir, fmt.Sprintf("render_%d.py", time.Now().UnixNano()))
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("writing render script: %w", err)
	}
	defer os.Remove(script)

	argv := append(append([]string{}, r.interpreter...), script)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid signals the process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	outW := &limitedWriter{w: &stdout, limit: maxCapturedOutput}
	errW := &limitedWriter{w: &stderr, limit: maxCapturedOutput}
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	err := cmd.Run()
	result := &RunResult{
		Stdout:   outW.captured(),
		Stderr:   errW.captured(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		r.log.Warn("render subprocess timed out",
			slog.Duration("timeout", r.timeout))
		return result, ErrRenderTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("starting interpreter: %w", err)
	}
	return result, nil
}

// Render emits, executes and verifies a spec end to end. It returns the
// artifact filenames (relative to outDir) in the spec's format order.
func (r *Runner) Render(ctx context.Context, spec *datatypes.ArchitectureSpec, symbols map[string]Symbol, generationID, outDir string) ([]string, string, error) {
	ctx, span := renderTracer.Start(ctx, "Runner.Render",
		trace.WithAttributes(
			attribute.String("provider", string(spec.Provider)),
			attribute.Int("components", len(spec.Components)),
			attribute.Int("connections", len(spec.Connections)),
		),
	)
	defer span.End()

	stem := FilenameStem(spec.Title, generationID)
	code, err := EmitPython(spec, symbols, stem)
	if err != nil {
		return nil, "", err
	}

	result, err := r.Run(ctx, code, outDir)
	if errors.Is(err, ErrRenderTimeout) {
		return nil, code, &RenderError{ExitCode: -1, Stderr: result.Stderr, TimedOut: true}
	}
	if err != nil {
		return nil, code, err
	}
	if result.ExitCode != 0 {
		return nil, code, &RenderError{ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	formats := spec.OutFormats
	if len(formats) == 0 {
		formats = datatypes.OutFormats{datatypes.FormatPNG}
	}
	artifacts := make([]string, 0, len(formats))
	for _, f := range formats {
		name := stem + "." + string(f)
		if _, statErr := os.Stat(filepath.Join(outDir, name)); statErr != nil {
			// Zero exit but no file: diagrams swallowed an error.
			return nil, code, &RenderError{ExitCode: 0, Stderr: fmt.Sprintf("expected artifact %s was not produced; stderr: %s", name, result.Stderr)}
		}
		artifacts = append(artifacts, name)
	}

	r.log.Info("rendered diagram",
		slog.String("stem", stem),
		slog.Int("artifacts", len(artifacts)),
		slog.Duration("duration", result.Duration))
	return artifacts, code, nil
}

// limitedWriter caps captured subprocess output.
type limitedWriter struct {
	w         *bytes.Buffer
	limit     int
	truncated bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	remaining := l.limit - l.w.Len()
	if remaining <= 0 {
		l.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		l.truncated = true
		l.w.Write(p[:remaining])
		return len(p), nil
	}
	return l.w.Write(p)
}

// captured returns the buffered output, marked when the limit cut it.
func (l *limitedWriter) captured() string {
	if l.truncated {
		return l.w.String() + "\n[output truncated]"
	}
	return l.w.String()
}
