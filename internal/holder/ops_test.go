package holder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/svcerr"
)

func TestStartRefusesNonStoppedContainer(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	c.Lock()
	c.State = container.Running
	c.Unlock()

	err = h.Start(context.Background(), "web", false)
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))
}

func TestStartRefusesEmptyCommand(t *testing.T) {
	h := newTestHolder(t)
	sup, _ := h.Get(SupervisorRootName)
	sup.Lock()
	sup.State = container.Running
	sup.Unlock()

	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	err = h.Start(context.Background(), "web", false)
	assert.True(t, svcerr.Is(err, svcerr.InvalidValue))
}

func TestStartRefusesWhenParentNotRunning(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	c.Lock()
	c.Command = "/bin/true"
	c.Unlock()

	// SupervisorRootName is Stopped by default, so starting a leaf under it
	// must be refused before any cgroup resource is touched.
	err = h.Start(context.Background(), "web", false)
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))
}

func TestSetPropertyMarksDirtyAndApplyClearsNonPushableTags(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	require.NoError(t, h.SetProperty("web", "command", "/bin/echo hi"))
	got, err := c.GetProperty("command")
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo hi", got)

	// "command" has no dynamicPush entry, so applying dynamic properties on
	// a Stopped container (no cgroups allocated) must still succeed: the
	// dirty tag is simply cleared as in-memory-only bookkeeping.
	require.NoError(t, h.ApplyDynamicProperties("web"))
}

func TestSetPropertyRejectsUnknownProperty(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	err = h.SetProperty("web", "not_a_real_property", "x")
	assert.True(t, svcerr.Is(err, svcerr.InvalidProperty))
}

func TestReapTransitionsStoppedContainerToDead(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	require.NoError(t, h.Reap("web", 1, false))
	assert.Equal(t, container.Dead, c.State)
	assert.Equal(t, 1, c.RT.ExitStatus)
}

func TestExitReapsSelfAndChildren(t *testing.T) {
	h := newTestHolder(t)
	parent, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	child, err := h.Create("web/worker", container.Credentials{})
	require.NoError(t, err)
	child.Lock()
	child.State = container.Running
	child.Unlock()

	require.NoError(t, h.Exit("web", 0, false))

	assert.Equal(t, container.Dead, parent.State)
	assert.Equal(t, container.Dead, child.State)
}

func TestPauseRefusesNonRunningContainer(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	err = h.Pause("web")
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))
}

func TestPauseRefusesRunningContainerWithNoCgroups(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	c.Lock()
	c.State = container.Running
	c.Unlock()

	// Never Started, so no live cgroups exist; Pause must fail its own
	// guard before touching the (nil) resource set.
	err = h.Pause("web")
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))
}

func TestResumeRefusesNonPausedContainer(t *testing.T) {
	h := newTestHolder(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	err = h.Resume("web")
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))
}

func TestRespawnRefusesAcquiredContainer(t *testing.T) {
	h := newTestHolder(t)
	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	c.Lock()
	c.Acquire()
	c.Unlock()

	err = h.Respawn(context.Background(), "web")
	assert.True(t, svcerr.Is(err, svcerr.Busy))
}
