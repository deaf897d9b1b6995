package container

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/launcher"
	"github.com/supervisr/core/internal/svcerr"
)

// Start brings a Stopped container into Running (meta=false) or Meta
// (meta=true): recompute capability ceilings, allocate every resource,
// apply configured knobs, launch the task (skipped for Meta), persist.
func (c *Container) Start(ctx context.Context, meta bool) error {
	if c.State != Stopped {
		return svcerr.New(svcerr.InvalidState, "start: container %s is %s, not stopped", c.Name, c.State)
	}
	if !meta && c.Command == "" {
		return svcerr.New(svcerr.InvalidValue, "start: command is empty")
	}
	if c.parent != nil && c.parent.State != Running && c.parent.State != Meta {
		return svcerr.New(svcerr.InvalidState, "start: parent %s is %s", c.parent.Name, c.parent.State)
	}

	if err := c.SanitizeCapabilities(); err != nil {
		return err
	}
	if err := c.allocateResources(); err != nil {
		return err
	}

	if meta {
		c.State = Meta
		c.notifyWaiters()
		c.persist()
		return nil
	}

	result, err := c.launchTask(ctx)
	if err != nil {
		c.releaseResources()
		return err
	}
	c.RT.TaskPid = result.RealPid
	c.RT.TaskVPid = result.VPid
	c.RT.WaitTaskPid = result.RealPid
	c.RT.StartTime = c.now()
	c.State = Running
	c.notifyWaiters()
	c.persist()
	return nil
}

// launchTask builds a launcher.Spec from the container's current
// configuration and live resources, and runs it.
func (c *Container) launchTask(ctx context.Context) (*launcher.Result, error) {
	streams, err := c.openStdStreams()
	if err != nil {
		return nil, err
	}
	defer streams.close()

	spec := &launcher.Spec{
		Name:         c.Name,
		Command:      c.Command,
		Cwd:          c.Cwd,
		Root:         c.Root,
		RootReadOnly: c.RootReadOnly,
		Umask:        c.Umask,
		Env:          c.Env,
		Hostname:     c.Hostname,
		ResolvConf:   c.ResolvConf,
		Credential:   syscall.Credential{Uid: uint32(c.Cred.UID), Gid: uint32(c.Cred.GID)},
		Isolate:      c.Isolate,
		OSMode:       c.VirtMode == vmOS,
		CapAmbient:   c.Cap.Ambient.ToList(),
		CapLimit:     c.Cap.Limit.ToList(),
		Stdin:        streams.stdin,
		Stdout:       streams.stdout,
		Stderr:       streams.stderr,
		AttachCgroups: func(pid int) error {
			return c.res.cgroups.AddProc(pid)
		},
	}
	for _, b := range c.Binds {
		spec.Binds = append(spec.Binds, launcher.BindMount{Source: b.Source, Target: b.Target, ReadOnly: b.ReadOnly})
	}
	for _, d := range c.Devices {
		spec.Devices = append(spec.Devices, launcher.DeviceRule{
			Type: byte(d.Type), Major: d.Major, Minor: d.Minor, Access: d.Access,
		})
	}

	return c.deps.Launch(ctx, spec)
}

type stdStreamFiles struct {
	files               []*os.File
	stdin, stdout, stderr uintptr
}

func (s *stdStreamFiles) close() {
	for _, f := range s.files {
		f.Close()
	}
}

// openStdStreams opens the backing file for each configured std stream;
// stdin is opened read-only, stdout/stderr append-write-create. A stream
// with no OutsidePath gets fd 0 (launcher interprets that as "inherit
// /dev/null-equivalent").
func (c *Container) openStdStreams() (*stdStreamFiles, error) {
	out := &stdStreamFiles{}
	open := func(path string, flags int) (uintptr, error) {
		if path == "" {
			return 0, nil
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return 0, svcerr.Wrap(err, "open std stream %s", path)
		}
		out.files = append(out.files, f)
		return f.Fd(), nil
	}
	var err error
	if out.stdin, err = open(c.Stdin.OutsidePath, os.O_RDONLY|os.O_CREATE); err != nil {
		return nil, err
	}
	if out.stdout, err = open(c.Stdout.OutsidePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND); err != nil {
		out.close()
		return nil, err
	}
	if out.stderr, err = open(c.Stderr.OutsidePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND); err != nil {
		out.close()
		return nil, err
	}
	return out, nil
}

// Terminate drives a container's task tree toward empty, escalating from a
// polite SIGTERM to repeated SIGKILL-while-frozen passes. deadline is the
// wall-clock time by which the polite phase must give up; a deadline that is
// not in the future skips straight to the kill passes (Reap passes the
// current time).
func (c *Container) Terminate(deadline time.Time) error {
	if c.res == nil || !c.res.cgroupsMade {
		return nil
	}
	freezer := c.res.cgroups.Freezer

	empty, err := freezer.IsEmpty()
	if err != nil {
		return err
	}
	if empty {
		return nil
	}

	if c.parent != nil {
		frozen, err := c.parent.parentFreezing()
		if err != nil {
			return err
		}
		if frozen {
			return svcerr.New(svcerr.Busy, "terminate: parent of %s is frozen", c.Name)
		}
	}

	if c.RT.TaskPid != 0 && c.State != Meta && c.now().Before(deadline) {
		_ = syscall.Kill(c.RT.TaskPid, syscall.SIGTERM)
		for c.now().Before(deadline) {
			if zombie, _ := isZombie(c.RT.TaskPid); zombie {
				break
			}
			empty, err := freezer.IsEmpty()
			if err != nil {
				return err
			}
			if empty {
				return nil
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	for pass := 0; pass < 3; pass++ {
		if err := freezer.KillAll(syscall.SIGKILL); err != nil {
			return err
		}
		empty, err := freezer.IsEmpty()
		if err != nil {
			return err
		}
		if empty {
			return nil
		}
		if err := freezer.Freeze(); err != nil {
			return err
		}
		_ = freezer.KillAll(syscall.SIGKILL)
		if err := freezer.Thaw(); err != nil {
			return err
		}
		stop := make(chan struct{})
		time.AfterFunc(time.Second, func() { close(stop) })
		_ = freezer.WaitState(cgroup.FreezerThawed, stop, func() { time.Sleep(10 * time.Millisecond) })
	}
	return nil
}

func (c *Container) parentFreezing() (bool, error) {
	if c.res == nil || !c.res.cgroupsMade {
		return false, nil
	}
	return c.res.cgroups.Freezer.IsParentFreezing()
}

func isZombie(pid int) (bool, error) {
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
	if err != nil {
		return false, nil
	}
	return wpid == pid, nil
}

// Stop drives a container of any non-Stopped state back to Stopped: full
// Terminate with a generous deadline, clear runtime bookkeeping, release
// every resource, truncate std streams, persist.
func (c *Container) Stop(deadline time.Duration) error {
	if c.State == Stopped {
		return nil
	}
	if c.IsRoot() {
		return svcerr.New(svcerr.InvalidState, "stop: root container cannot be stopped")
	}
	if err := c.Terminate(c.now().Add(deadline)); err != nil {
		return err
	}
	c.clearRuntime()
	c.releaseResources()
	c.truncateStdStreams()
	c.State = Stopped
	c.notifyWaiters()
	c.persist()
	return nil
}

func (c *Container) clearRuntime() {
	c.RT.TaskPid = 0
	c.RT.TaskVPid = 0
	c.RT.WaitTaskPid = 0
}

// Reap is called when the container's task has exited (SIGCHLD delivered
// for its pid) or an OOM kill fired. It terminates with a zero deadline,
// closes the OOM event, records the final runtime fields, rotates the std
// streams, transitions to Stopped (pure Meta) or Dead, persists, and
// schedules a respawn if configured.
func (c *Container) Reap(status int, oomKilled bool) error {
	if err := c.Terminate(c.now()); err != nil {
		c.logWarn("terminate during reap", "error", err)
	}
	c.CloseOOMEventFD()

	c.RT.DeathTime = c.now()
	c.RT.ExitStatus = status
	c.RT.OOMKilled = oomKilled
	c.RotateLogs()
	hadTask := c.RT.TaskPid != 0
	c.clearRuntime()
	c.releaseResources()

	if !hadTask && c.State == Meta {
		c.State = Stopped
	} else {
		c.State = Dead
	}
	c.notifyWaiters()
	c.persist()

	c.scheduleRespawn()
	return nil
}

// Exit descends the subtree preorder, reaping every non-Stopped, non-Dead
// descendant first, then reaps self. The caller holds c's own lock; each
// child is locked individually for the duration of its own Exit call, never
// nested under a sibling's lock.
func (c *Container) Exit(status int, oomKilled bool) error {
	for _, child := range c.Children() {
		child.Lock()
		state := child.State
		if state == Stopped || state == Dead {
			child.Unlock()
			continue
		}
		err := child.Exit(status, oomKilled)
		child.Unlock()
		if err != nil {
			c.logWarn("exit descendant", "child", child.Name, "error", err)
		}
	}
	return c.Reap(status, oomKilled)
}

// scheduleRespawn arranges a Respawn event after RespawnDelay when the
// container is configured to respawn, has budget left, and its parent is
// still alive. Respawn itself fails (no retry) if the container cannot be
// acquired when the timer fires.
func (c *Container) scheduleRespawn() {
	if !c.ToRespawn {
		return
	}
	if c.MaxRespawns >= 0 && c.RT.RespawnCount >= c.MaxRespawns {
		return
	}
	if c.parent != nil && c.parent.State != Running && c.parent.State != Meta {
		return
	}
	if c.deps == nil || c.deps.Scheduler == nil {
		return
	}
	delay := c.RespawnDelay
	if delay <= 0 {
		delay = c.deps.DefaultRespawnDelay
	}
	c.deps.Scheduler.ScheduleAfter(delay, func() {
		c.Lock()
		defer c.Unlock()
		if err := c.Respawn(context.Background()); err != nil {
			c.logWarn("respawn failed", "error", err)
		}
	})
}

// Respawn stops then restarts the container, incrementing RespawnCount on
// success; it refuses outright (no retry) if the container is already
// acquired by another operation.
func (c *Container) Respawn(ctx context.Context) error {
	if !c.TryAcquire() {
		return svcerr.New(svcerr.Busy, "respawn: %s is acquired", c.Name)
	}
	defer c.Release()

	if c.State != Stopped {
		if err := c.Stop(c.respawnKillTimeout()); err != nil {
			return err
		}
	}
	if err := c.Start(ctx, false); err != nil {
		return err
	}
	c.RT.RespawnCount++
	return nil
}

func (c *Container) respawnKillTimeout() time.Duration {
	if c.deps != nil && c.deps.DefaultRespawnDelay > 0 {
		return c.deps.DefaultRespawnDelay
	}
	return time.Second
}

// Pause freezes a Running or Meta container's cgroup, refusing if any
// descendant is currently acquired.
func (c *Container) Pause() error {
	if c.State != Running && c.State != Meta {
		return svcerr.New(svcerr.InvalidState, "pause: %s is %s", c.Name, c.State)
	}
	if c.anyDescendantAcquired() {
		return svcerr.New(svcerr.Busy, "pause: a descendant of %s is acquired", c.Name)
	}
	if c.res == nil || !c.res.cgroupsMade {
		return svcerr.New(svcerr.InvalidState, "pause: %s has no cgroups", c.Name)
	}
	if err := c.res.cgroups.Freezer.Freeze(); err != nil {
		return err
	}
	c.State = Paused
	c.notifyWaiters()
	c.persist()
	return nil
}

func (c *Container) anyDescendantAcquired() bool {
	for _, child := range c.children {
		child.Lock()
		acquired := child.IsAcquired()
		nested := child.anyDescendantAcquired()
		child.Unlock()
		if acquired || nested {
			return true
		}
	}
	return false
}

// Resume thaws a Paused container back to Running or Meta, refusing unless
// the freezer reports this container itself frozen (not merely a frozen
// ancestor) and no ancestor is frozen/freezing.
func (c *Container) Resume() error {
	if c.State != Paused {
		return svcerr.New(svcerr.InvalidState, "resume: %s is %s", c.Name, c.State)
	}
	if c.res == nil || !c.res.cgroupsMade {
		return svcerr.New(svcerr.InvalidState, "resume: %s has no cgroups", c.Name)
	}
	frozen, err := c.res.cgroups.Freezer.IsFrozen()
	if err != nil {
		return err
	}
	if !frozen {
		return svcerr.New(svcerr.InvalidState, "resume: %s is not self-frozen", c.Name)
	}
	if c.parent != nil {
		if ancestorFrozen, err := c.parent.parentFreezing(); err != nil {
			return err
		} else if ancestorFrozen {
			return svcerr.New(svcerr.Busy, "resume: an ancestor of %s is frozen", c.Name)
		}
	}
	if err := c.res.cgroups.Freezer.Thaw(); err != nil {
		return err
	}
	if c.Command == "" {
		c.State = Meta
	} else {
		c.State = Running
	}
	c.notifyWaiters()
	c.persist()
	return nil
}

// Destroy releases whatever the container still owns after a Stop/Reap
// (root volume, named volumes) and clears its persisted kv node. Refusing
// containers with children or the tree root is the Holder's responsibility,
// since only it can see the full index.
func (c *Container) Destroy() error {
	if c.State != Stopped && c.State != Dead && c.State != Meta {
		return svcerr.New(svcerr.InvalidState, "destroy: %s is %s", c.Name, c.State)
	}
	if c.IsAcquired() {
		return svcerr.New(svcerr.Busy, "destroy: %s is acquired", c.Name)
	}
	c.releaseResources()
	if c.deps != nil && c.deps.Store != nil {
		if err := c.deps.Store.Remove(c.ID); err != nil {
			c.logWarn("remove kv node on destroy", "error", err)
		}
	}
	return nil
}

// now is a method (not a package func) so tests can override it on a
// per-container basis without a global clock seam.
func (c *Container) now() time.Time { return time.Now() }

// persist writes the kv snapshot after a successful state-affecting
// operation, per the "the snapshot is written before returning success"
// invariant; a write failure is logged and swallowed rather than unwinding
// an already-successful state transition.
func (c *Container) persist() {
	if c.deps == nil || c.deps.Store == nil {
		return
	}
	if err := c.Save(c.deps.Store); err != nil {
		c.logWarn("persist", "error", err)
	}
}
