// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ResolveRejectsTraversal(t *testing.T) {
	st, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = st.Resolve("../../etc/passwd")
	assert.Error(t, err)

	path, err := st.Resolve("diagram_abc.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(st.Dir(), "diagram_abc.png"), path)
}

func TestStore_SweepRespectsRetention(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, time.Hour)
	require.NoError(t, err)

	old := filepath.Join(dir, "old.png")
	fresh := filepath.Join(dir, "fresh.png")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	removed := st.Sweep(time.Now())
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestStore_Count(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, 0)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.svg"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	n, err := st.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "directories do not count")
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	_, err := NewStore(dir, 0)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
