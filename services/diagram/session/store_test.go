// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

func minimalSpec(title string) *datatypes.ArchitectureSpec {
	return &datatypes.ArchitectureSpec{
		Title:    title,
		Provider: datatypes.ProviderAWS,
		Components: []datatypes.Component{
			{ID: "fn", Name: "Handler", Type: "lambda"},
		},
	}
}

func TestStore_CreateAndAccess(t *testing.T) {
	st := NewStore(0)
	st.Create("s1")

	err := st.WithSession("s1", func(s *Session) error {
		s.Spec = minimalSpec("v1")
		s.Code = "code-v1"
		s.GenerationID = "g1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())

	err = st.WithSession("missing", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_UndoRestoresExactPriorState(t *testing.T) {
	st := NewStore(0)
	st.Create("s1")

	require.NoError(t, st.WithSession("s1", func(s *Session) error {
		s.Spec = minimalSpec("v1")
		s.Code = "code-v1"
		s.GenerationID = "g1"
		s.Artifacts = []string{"v1.png"}
		return nil
	}))

	// Modify: snapshot, then mutate in place the way a handler would.
	require.NoError(t, st.WithSession("s1", func(s *Session) error {
		s.PushUndo()
		s.Spec = minimalSpec("v2")
		s.Spec.Components = append(s.Spec.Components, datatypes.Component{ID: "db", Name: "Table", Type: "dynamodb"})
		s.Code = "code-v2"
		s.GenerationID = "g2"
		s.Artifacts = []string{"v2.png"}
		return nil
	}))

	require.NoError(t, st.WithSession("s1", func(s *Session) error {
		require.True(t, s.PopUndo())
		assert.Equal(t, "v1", s.Spec.Title)
		assert.Len(t, s.Spec.Components, 1)
		assert.Equal(t, "code-v1", s.Code)
		assert.Equal(t, "g1", s.GenerationID)
		assert.Equal(t, []string{"v1.png"}, s.Artifacts)
		assert.False(t, s.PopUndo(), "history is exhausted")
		return nil
	}))
}

func TestSession_UndoSnapshotDoesNotAlias(t *testing.T) {
	st := NewStore(0)
	st.Create("s1")

	require.NoError(t, st.WithSession("s1", func(s *Session) error {
		s.Spec = minimalSpec("v1")
		s.PushUndo()
		// Mutating the live spec must not corrupt the snapshot.
		s.Spec.Components[0].Name = "Mutated"
		require.True(t, s.PopUndo())
		assert.Equal(t, "Handler", s.Spec.Components[0].Name)
		return nil
	}))
}

func TestSession_UndoDepthBounded(t *testing.T) {
	st := NewStore(0)
	st.Create("s1")

	require.NoError(t, st.WithSession("s1", func(s *Session) error {
		for i := 0; i < MaxUndoDepth+5; i++ {
			s.Spec = minimalSpec(fmt.Sprintf("v%d", i))
			s.PushUndo()
		}
		assert.Equal(t, MaxUndoDepth, s.UndoDepth())

		// The oldest snapshots fell off: the deepest reachable state is
		// v5, not v0.
		for s.PopUndo() {
		}
		assert.Equal(t, "v5", s.Spec.Title)
		return nil
	}))
}

func TestStore_SweepEvictsIdleSessions(t *testing.T) {
	st := NewStore(time.Minute)
	st.Create("old")
	st.Create("fresh")

	// Age the old session by touching only the fresh one later.
	future := time.Now().Add(2 * time.Minute)
	require.NoError(t, st.WithSession("fresh", func(s *Session) error {
		s.lastAccess = future
		return nil
	}))

	removed := st.Sweep(future)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, st.Len())
	assert.ErrorIs(t, st.WithSession("old", func(*Session) error { return nil }), ErrNotFound)
	assert.NoError(t, st.WithSession("fresh", func(*Session) error { return nil }))
}

func TestStore_AccessResetsIdleClock(t *testing.T) {
	st := NewStore(time.Minute)
	st.Create("s1")

	// An access now means a sweep 30s in the future finds it fresh.
	require.NoError(t, st.WithSession("s1", func(*Session) error { return nil }))
	assert.Equal(t, 0, st.Sweep(time.Now().Add(30*time.Second)))
}

func TestStore_ConcurrentSessionsIndependent(t *testing.T) {
	st := NewStore(0)
	const n = 16
	for i := 0; i < n; i++ {
		st.Create(fmt.Sprintf("s%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = st.WithSession(id, func(s *Session) error {
					s.PushUndo()
					s.Code = id
					return nil
				})
			}
		}(fmt.Sprintf("s%d", i))
	}
	wg.Wait()
	assert.Equal(t, n, st.Len())
}
