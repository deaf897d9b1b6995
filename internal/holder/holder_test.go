package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/kv"
)

func newTestHolder(t *testing.T) *Holder {
	t.Helper()
	store, err := kv.NewStore(t.TempDir())
	require.NoError(t, err)
	deps := &container.Deps{Store: store}
	return New(deps, zap.NewNop())
}

func TestNewSeedsReservedRoots(t *testing.T) {
	h := newTestHolder(t)

	root := h.Root()
	require.NotNil(t, root)
	assert.Equal(t, RootName, root.Name)
	assert.True(t, root.IsRoot())

	sup, err := h.Get(SupervisorRootName)
	require.NoError(t, err)
	assert.Equal(t, root, sup.Parent())
	assert.Equal(t, 1, sup.Level)

	names := h.List()
	assert.Equal(t, []string{RootName, SupervisorRootName}, names)
}

func TestCreateLinksUnderSupervisorRootByDefault(t *testing.T) {
	h := newTestHolder(t)

	c, err := h.Create("web", container.Credentials{UID: 10000, GID: 10000})
	require.NoError(t, err)
	assert.Equal(t, "web", c.Name)

	sup, _ := h.Get(SupervisorRootName)
	assert.Equal(t, sup, c.Parent())
	assert.Contains(t, sup.Children(), c)
	assert.Equal(t, container.Stopped, c.State)
}

func TestCreateNestedChild(t *testing.T) {
	h := newTestHolder(t)

	parent, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	child, err := h.Create("web/worker", container.Credentials{})
	require.NoError(t, err)

	assert.Equal(t, parent, child.Parent())
	assert.Equal(t, parent.Level+1, child.Level)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	_, err = h.Create("web", container.Credentials{})
	assert.Error(t, err)
}

func TestCreateRejectsMissingParent(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web/worker", container.Credentials{})
	assert.Error(t, err)
}

func TestCreateRejectsInvalidName(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("", container.Credentials{})
	assert.Error(t, err)
}

func TestGetMissingContainerFails(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Get("does-not-exist")
	assert.Error(t, err)
}

func TestDestroyRemovesFromIndexAndParent(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	require.NoError(t, h.Destroy("web"))

	_, err = h.Get("web")
	assert.Error(t, err)

	sup, _ := h.Get(SupervisorRootName)
	assert.NotContains(t, sup.Children(), c)
}

func TestDestroyRefusesContainerWithChildren(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	_, err = h.Create("web/worker", container.Credentials{})
	require.NoError(t, err)

	err = h.Destroy("web")
	assert.Error(t, err)
}

func TestDestroyRefusesReservedRoots(t *testing.T) {
	h := newTestHolder(t)
	assert.Error(t, h.Destroy(RootName))
	assert.Error(t, h.Destroy(SupervisorRootName))
}

func TestDestroyUnknownContainerFails(t *testing.T) {
	h := newTestHolder(t)
	assert.Error(t, h.Destroy("ghost"))
}

func TestDestroyReleasesIDForReuse(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	id := c.ID
	require.NoError(t, h.Destroy("web"))

	c2, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, id, c2.ID)
}

func TestByTaskPidFindsMatchingContainer(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	c.Lock()
	c.RT.TaskPid = 4242
	c.Unlock()

	found, ok := h.ByTaskPid(4242)
	require.True(t, ok)
	assert.Equal(t, c, found)

	_, ok = h.ByTaskPid(99999)
	assert.False(t, ok)
}

func TestListIsSorted(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("zeta", container.Credentials{})
	require.NoError(t, err)
	_, err = h.Create("alpha", container.Credentials{})
	require.NoError(t, err)

	names := h.List()
	assert.Equal(t, []string{"alpha", RootName, SupervisorRootName, "zeta"}, names)
}
