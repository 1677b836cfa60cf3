// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package artifacts manages the rendered-diagram output directory:
// safe path resolution for serving, retention sweeping and a filesystem
// watcher feeding the on-disk gauge.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/diagramlab/diagramlab/pkg/validation"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
)

const (
	// DefaultRetention is how long an artifact survives after its last
	// modification.
	DefaultRetention = 24 * time.Hour

	// SweepInterval is how often the retention sweep runs.
	SweepInterval = time.Hour
)

// Store wraps the artifact output directory.
type Store struct {
	dir       string
	retention time.Duration
	log       *slog.Logger
}

// NewStore creates the output directory if needed. Zero retention means
// DefaultRetention.
func NewStore(dir string, retention time.Duration) (*Store, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Store{dir: abs, retention: retention, log: slog.Default()}, nil
}

// Dir returns the absolute output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Resolve maps a requested filename onto a path inside the output
// directory, refusing traversal.
func (s *Store) Resolve(name string) (string, error) {
	return validation.SafeJoin(s.dir, name)
}

// Count returns the number of artifact files on disk.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// Sweep deletes artifacts whose mtime is older than the retention window
// and returns how many it removed.
func (s *Store) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Error("artifact sweep failed", slog.String("error", err.Error()))
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= s.retention {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warn("removing expired artifact",
				slog.String("name", e.Name()),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	if removed > 0 {
		observability.ArtifactsSwept.Add(float64(removed))
		s.log.Info("swept expired artifacts", slog.Int("removed", removed))
	}
	return removed
}

// StartSweeper runs the retention sweep on a ticker until ctx is
// cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = SweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Sweep(now)
			}
		}
	}()
}
