// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"container/list"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Recorder keeps the last lines logged by recent requests, keyed by
// request id. It backs GET /api/error-logs/{request_id}.
//
// Capacity is bounded two ways: at most maxRequests distinct request ids
// are retained (least recently written evicted first), and each request
// keeps at most maxLines lines (oldest dropped first).
type Recorder struct {
	mu          sync.Mutex
	maxRequests int
	maxLines    int
	entries     map[string]*requestLog
	order       *list.List // front = least recently written
}

type requestLog struct {
	lines []string
	elem  *list.Element
}

// NewRecorder creates a Recorder retaining up to maxRequests request
// streams of up to maxLines lines each.
func NewRecorder(maxRequests, maxLines int) *Recorder {
	if maxRequests <= 0 {
		maxRequests = 256
	}
	if maxLines <= 0 {
		maxLines = 64
	}
	return &Recorder{
		maxRequests: maxRequests,
		maxLines:    maxLines,
		entries:     make(map[string]*requestLog),
		order:       list.New(),
	}
}

// record appends a formatted line for the given request id.
func (rec *Recorder) record(requestID string, r slog.Record) {
	line := formatRecord(r)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rl, ok := rec.entries[requestID]
	if !ok {
		rl = &requestLog{}
		rl.elem = rec.order.PushBack(requestID)
		rec.entries[requestID] = rl
		for rec.order.Len() > rec.maxRequests {
			front := rec.order.Front()
			delete(rec.entries, front.Value.(string))
			rec.order.Remove(front)
		}
	} else {
		rec.order.MoveToBack(rl.elem)
	}

	rl.lines = append(rl.lines, line)
	if len(rl.lines) > rec.maxLines {
		rl.lines = rl.lines[len(rl.lines)-rec.maxLines:]
	}
}

// Lines returns a copy of the captured lines for requestID, oldest first.
// Returns nil when the id is unknown or already evicted.
func (rec *Recorder) Lines(requestID string) []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rl, ok := rec.entries[requestID]
	if !ok {
		return nil
	}
	out := make([]string, len(rl.lines))
	copy(out, rl.lines)
	return out
}

// formatRecord renders a record as a single text line. The format is
// intentionally plain: it is shown to users iterating on failed renders.
func formatRecord(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Time.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	return b.String()
}
