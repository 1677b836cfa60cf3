// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package artifacts

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/diagramlab/diagramlab/services/diagram/observability"
)

// Watch keeps the on-disk artifact gauge current by watching the output
// directory for creates and removes. Blocks until ctx is cancelled;
// callers run it in a goroutine.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	s.refreshGauge()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				s.refreshGauge()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("artifact watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Store) refreshGauge() {
	n, err := s.Count()
	if err != nil {
		return
	}
	observability.ArtifactsOnDisk.Set(float64(n))
}
