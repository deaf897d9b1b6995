package eventloop

import (
	"time"

	"go.uber.org/zap"

	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/holder"
)

// Dispatcher wires a Loop's fd/timer callbacks to Holder operations,
// realizing the event table: Exit routes to the container matching the
// exited pid, RotateLogs fans out to every Running container on a fixed
// period, and DestroyWeak is enqueued immediately after an Exit that leaves
// a weak, childless, terminal container behind.
type Dispatcher struct {
	loop   *Loop
	holder *holder.Holder
	log    *zap.Logger
}

// NewDispatcher binds loop to holder; callers still need to call
// StartRotateLogs and wire the reaper's event pipe separately (the reaper
// package owns the wire format, this package only needs the decoded pid,
// status, oomKilled triple).
func NewDispatcher(loop *Loop, h *holder.Holder, log *zap.Logger) *Dispatcher {
	return &Dispatcher{loop: loop, holder: h, log: log}
}

// HandleExit implements the Exit row of the event table: locate the
// container whose real task pid matches, reap/exit its subtree, then
// immediately enqueue DestroyWeak if it turns out to be a weak, childless,
// now-terminal container.
func (d *Dispatcher) HandleExit(pid, status int, oomKilled bool) {
	c, ok := d.holder.ByTaskPid(pid)
	if !ok {
		if d.log != nil {
			d.log.Sugar().Warnw("exit for unknown pid", "pid", pid, "status", status)
		}
		return
	}

	c.Lock()
	name := c.Name
	err := c.Exit(status, oomKilled)
	weak := c.Weak
	terminal := c.State == container.Stopped || c.State == container.Dead
	hasChildren := len(c.Children()) > 0
	c.Unlock()

	if err != nil && d.log != nil {
		d.log.Sugar().Warnw("exit dispatch failed", "container", name, "error", err)
	}

	if weak && terminal && !hasChildren {
		d.destroyWeak(name)
	}
}

// destroyWeak enqueues an immediate (zero-delay) Holder.Destroy, keeping
// the single-threaded loop as the only caller of container-mutating Holder
// methods.
func (d *Dispatcher) destroyWeak(name string) {
	d.loop.ScheduleAfter(0, func() {
		if err := d.holder.Destroy(name); err != nil && d.log != nil {
			d.log.Sugar().Warnw("destroy weak container", "container", name, "error", err)
		}
	})
}

// StartRotateLogs arranges the periodic RotateLogs event: every interval,
// every Running container's std streams are truncated per its configured
// rotation policy. Re-arms itself via ScheduleAfter so it keeps firing for
// the lifetime of the loop.
func (d *Dispatcher) StartRotateLogs(interval time.Duration) {
	var tick func()
	tick = func() {
		d.holder.Heartbeat(func(c *container.Container) {
			c.Lock()
			running := c.State == container.Running
			c.Unlock()
			if running {
				c.Lock()
				c.RotateLogs()
				c.Unlock()
			}
		})
		d.loop.ScheduleAfter(interval, tick)
	}
	d.loop.ScheduleAfter(interval, tick)
}
