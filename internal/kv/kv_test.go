package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	node := Node{"id": "3", "name": "web", "state": "running", "command": "/bin/sh"}
	require.NoError(t, store.Save(3, node))

	got, err := store.Load(3)
	require.NoError(t, err)
	assert.Equal(t, node, got)
}

func TestLoadMissingNodeFails(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(99)
	assert.Error(t, err)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(1, Node{"name": "a"}))
	require.NoError(t, store.Remove(1))
	require.NoError(t, store.Remove(1))

	_, err = store.Load(1)
	assert.Error(t, err)
}

func TestListEnumeratesSavedIDsSortedAndSkipsTmp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(5, Node{"name": "e"}))
	require.NoError(t, store.Save(2, Node{"name": "b"}))
	require.NoError(t, store.Save(9, Node{"name": "i"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7.tmp"), []byte("name = g\n"), 0o600))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 9}, ids)
}

func TestSaveOverwritesExistingNode(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(1, Node{"command": "old"}))
	require.NoError(t, store.Save(1, Node{"command": "new"}))

	got, err := store.Load(1)
	require.NoError(t, err)
	assert.Equal(t, "new", got["command"])
}
