package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/holder"
	"github.com/supervisr/core/internal/kv"
)

func newDispatchFixture(t *testing.T) (*Loop, *holder.Holder, *Dispatcher) {
	t.Helper()
	store, err := kv.NewStore(t.TempDir())
	require.NoError(t, err)
	deps := &container.Deps{Store: store}
	h := holder.New(deps, zap.NewNop())

	l, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l, h, NewDispatcher(l, h, zap.NewNop())
}

func TestHandleExitReapsMatchingContainer(t *testing.T) {
	_, h, d := newDispatchFixture(t)

	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	c.Lock()
	c.State = container.Running
	c.RT.TaskPid = 777
	c.Unlock()

	d.HandleExit(777, 0, false)

	c.Lock()
	state := c.State
	c.Unlock()
	assert.Equal(t, container.Dead, state)
}

func TestHandleExitUnknownPidIsNoop(t *testing.T) {
	_, h, d := newDispatchFixture(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	assert.NotPanics(t, func() { d.HandleExit(999999, 0, false) })
}

func TestHandleExitDestroysWeakChildlessContainerOnceTerminal(t *testing.T) {
	l, h, d := newDispatchFixture(t)

	c, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	c.Lock()
	c.State = container.Running
	c.RT.TaskPid = 321
	c.Weak = true
	c.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go l.Run(ctx)

	d.HandleExit(321, 0, false)

	require.Eventually(t, func() bool {
		_, err := h.Get("web")
		return err != nil
	}, 250*time.Millisecond, 10*time.Millisecond, "weak container should be destroyed after exit")
}

func TestStartRotateLogsRearmsPeriodically(t *testing.T) {
	l, h, d := newDispatchFixture(t)
	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)

	start := time.Now()
	d.StartRotateLogs(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Run(ctx))

	// The first tick is due at start+10ms; a pending tick due no earlier than
	// start+20ms can only have been armed by a tick that already fired.
	l.mu.Lock()
	next, ok := l.timers.nextDeadline()
	l.mu.Unlock()
	require.True(t, ok, "a re-armed tick must still be pending")
	assert.False(t, next.Before(start.Add(20*time.Millisecond)), "the pending tick must come from a re-arm")
}
