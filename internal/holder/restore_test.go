package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/kv"
)

func TestRestoreFromStorageRebuildsTreeFromPersistedNodes(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.NewStore(dir)
	require.NoError(t, err)
	deps := &container.Deps{Store: store}

	seed := New(deps, zap.NewNop())
	_, err = seed.Create("web", container.Credentials{UID: 10000})
	require.NoError(t, err)
	_, err = seed.Create("web/worker", container.Credentials{})
	require.NoError(t, err)

	restored := New(deps, zap.NewNop())
	require.NoError(t, restored.RestoreFromStorage())

	web, err := restored.Get("web")
	require.NoError(t, err)
	assert.Equal(t, 10000, web.Cred.UID)

	worker, err := restored.Get("web/worker")
	require.NoError(t, err)
	assert.Equal(t, web, worker.Parent())
}

func TestRestoreFromStorageSkipsOrphanedNodes(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.NewStore(dir)
	require.NoError(t, err)
	deps := &container.Deps{Store: store}

	// A node whose parent was never persisted (e.g. the parent's own save
	// failed) must not crash the restore; it is simply skipped.
	require.NoError(t, store.Save(50, kv.Node{"id": "50", "name": "orphan/child", "state": "stopped"}))

	h := New(deps, zap.NewNop())
	require.NoError(t, h.RestoreFromStorage())

	_, err = h.Get("orphan/child")
	assert.Error(t, err)
}

func TestRestoreFromStorageIsIdempotentAcrossReservedRoots(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.NewStore(dir)
	require.NoError(t, err)
	deps := &container.Deps{Store: store}

	h := New(deps, zap.NewNop())
	require.NoError(t, h.RestoreFromStorage())

	assert.Equal(t, []string{RootName, SupervisorRootName}, h.List())
}
