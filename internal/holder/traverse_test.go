package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supervisr/core/internal/container"
)

func TestTraversePreorderVisitsParentBeforeChild(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	_, err = h.Create("web/worker", container.Credentials{})
	require.NoError(t, err)

	var visited []string
	require.NoError(t, h.Traverse("web", Preorder, func(c *container.Container) {
		visited = append(visited, c.Name)
	}))
	assert.Equal(t, []string{"web", "web/worker"}, visited)
}

func TestTraversePostorderVisitsChildBeforeParent(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	_, err = h.Create("web/worker", container.Credentials{})
	require.NoError(t, err)

	var visited []string
	require.NoError(t, h.Traverse("web", Postorder, func(c *container.Container) {
		visited = append(visited, c.Name)
	}))
	assert.Equal(t, []string{"web/worker", "web"}, visited)
}

func TestTraverseUnknownRootFails(t *testing.T) {
	h := newTestHolder(t)
	err := h.Traverse("ghost", Preorder, func(c *container.Container) {})
	assert.Error(t, err)
}

func TestHeartbeatVisitsEveryRegisteredContainer(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("a", container.Credentials{})
	require.NoError(t, err)
	_, err = h.Create("b", container.Credentials{})
	require.NoError(t, err)

	seen := make(map[string]bool)
	h.Heartbeat(func(c *container.Container) { seen[c.Name] = true })

	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
	assert.True(t, seen[RootName])
	assert.True(t, seen[SupervisorRootName])
}
