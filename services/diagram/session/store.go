// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session keeps per-conversation diagram state in memory:
// the current spec, the emitted code, the artifact list and a bounded
// undo history. Sessions idle past their TTL are swept.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

const (
	// DefaultTTL is how long an idle session survives.
	DefaultTTL = time.Hour

	// SweepInterval is how often the sweeper scans for idle sessions.
	SweepInterval = 5 * time.Minute

	// MaxUndoDepth bounds the undo stack; the oldest snapshot falls off.
	MaxUndoDepth = 10
)

var ErrNotFound = errors.New("session not found")

// State is one point-in-time snapshot of a session.
type State struct {
	Spec         *datatypes.ArchitectureSpec
	Code         string
	GenerationID string
	Artifacts    []string
}

// clone deep-copies the snapshot so undo history never aliases the live
// spec.
func (s State) clone() State {
	out := State{
		Code:         s.Code,
		GenerationID: s.GenerationID,
		Artifacts:    slices.Clone(s.Artifacts),
	}
	if s.Spec != nil {
		out.Spec = s.Spec.Clone()
	}
	return out
}

// Session is the mutable state of one diagram conversation. Fields are
// only safe to touch inside Store.WithSession, which holds the
// per-session mutex.
type Session struct {
	ID           string
	Spec         *datatypes.ArchitectureSpec
	Code         string
	GenerationID string
	Artifacts    []string

	mu         sync.Mutex
	undo       []State
	lastAccess time.Time
}

// PushUndo snapshots the current state onto the undo stack. Call with
// the session lock held (inside WithSession).
func (s *Session) PushUndo() {
	snap := State{
		Spec:         s.Spec,
		Code:         s.Code,
		GenerationID: s.GenerationID,
		Artifacts:    s.Artifacts,
	}.clone()
	s.undo = append(s.undo, snap)
	if len(s.undo) > MaxUndoDepth {
		s.undo = s.undo[len(s.undo)-MaxUndoDepth:]
	}
}

// PopUndo restores the most recent snapshot and reports whether there
// was one. Call with the session lock held.
func (s *Session) PopUndo() bool {
	if len(s.undo) == 0 {
		return false
	}
	snap := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.Spec = snap.Spec
	s.Code = snap.Code
	s.GenerationID = snap.GenerationID
	s.Artifacts = snap.Artifacts
	return true
}

// UndoDepth returns the number of snapshots available. Call with the
// session lock held.
func (s *Session) UndoDepth() int {
	return len(s.undo)
}

// Store holds live sessions. All access to a session's state goes
// through WithSession so concurrent modifications of the same session
// serialize while different sessions proceed in parallel.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	log      *slog.Logger
}

// NewStore builds a Store with the given idle TTL; zero means
// DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      slog.Default(),
	}
}

// Create registers an empty session under id, replacing any previous
// session with the same id.
func (st *Store) Create(id string) *Session {
	sess := &Session{ID: id, lastAccess: time.Now()}
	st.mu.Lock()
	st.sessions[id] = sess
	st.mu.Unlock()
	return sess
}

// WithSession runs fn with the session's lock held and its idle clock
// reset. Returns ErrNotFound when the id is unknown or already swept.
func (st *Store) WithSession(id string, fn func(*Session) error) error {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastAccess = time.Now()
	return fn(sess)
}

// Delete removes a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the live session count.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle longer than the TTL and returns how many
// it removed.
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, sess := range st.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastAccess)
		sess.mu.Unlock()
		if idle > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		st.log.Info("swept idle sessions",
			slog.Int("removed", removed),
			slog.Int("remaining", len(st.sessions)))
	}
	return removed
}

// StartSweeper runs the TTL sweep on a ticker until ctx is cancelled.
func (st *Store) StartSweeper(ctx context.Context, interval time.Duration) {
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
				st.Sweep(now)
			}
		}
	}()
}
