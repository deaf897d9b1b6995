package container

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/netiface"
	"github.com/supervisr/core/internal/svcerr"
	"github.com/supervisr/core/internal/volume"
)

// allocateResources builds every kernel-side resource Start needs: the work
// directory, the per-subsystem cgroups, the OOM eventfd (registered with the
// scheduler), the root volume (if Root names a regular file) and every
// configured network's traffic class. On any failure it unwinds whatever it
// already created and returns the original error.
func (c *Container) allocateResources() (err error) {
	res := &liveResources{network: make(map[string]netiface.Handle)}
	c.res = res
	defer func() {
		if err != nil {
			c.releaseResources()
		}
	}()

	res.workDir = filepath.Join(c.deps.WorkDirRoot, c.Name)
	if err = os.MkdirAll(res.workDir, 0o755); err != nil {
		return svcerr.Wrap(err, "create work dir %s", res.workDir)
	}

	group := c.deps.Cgroups.Group(c.Name)
	if err = group.Create(); err != nil {
		return err
	}
	res.cgroups = group
	res.cgroupsMade = true

	if err = group.Devices.ApplyDefault(); err != nil {
		return err
	}
	for _, d := range c.Devices {
		if err = group.Devices.ApplyDevice(d); err != nil {
			return err
		}
	}

	if fi, statErr := os.Stat(c.Root); c.Root != "" && statErr == nil && !fi.IsDir() {
		var h volume.Handle
		h, err = c.deps.Volumes.AcquireRoot(c.Name, c.Root)
		if err != nil {
			return err
		}
		res.root = &h
	}

	for linkName, netCfg := range c.Res.Networks {
		h := c.deps.NetAttach()
		if err = h.Attach(netCfg.Link, netCfg.ClassID, netCfg.Limits); err != nil {
			return err
		}
		res.network[linkName] = h
	}

	if err = c.applyResourceKnobs(); err != nil {
		return err
	}

	efd, err := c.OpenOOMEventFD()
	if err != nil {
		return err
	}
	watchID, werr := c.deps.Scheduler.RegisterOOMFD(efd, func() {
		c.Lock()
		defer c.Unlock()
		_ = c.Exit(int(syscall.SIGKILL), true)
	})
	if werr != nil {
		err = werr
		return err
	}
	res.oomWatchID = watchID

	return nil
}

// releaseResources tears down everything allocateResources built for the
// currently live res, logging and continuing past individual failures
// rather than aborting partway: every exit path (Stop, Destroy, Reap) must
// leave no orphaned kernel state even when one subsystem misbehaves.
func (c *Container) releaseResources() {
	res := c.res
	if res == nil {
		return
	}
	if res.oomWatchID != 0 {
		c.deps.Scheduler.UnregisterOOMFD(res.oomWatchID)
	}
	c.CloseOOMEventFD()

	for name, h := range res.network {
		if err := h.Detach(); err != nil {
			c.logWarn("detach network", "network", name, "error", err)
		}
	}

	if res.root != nil {
		if err := c.deps.Volumes.Release(*res.root); err != nil {
			c.logWarn("release root volume", "error", err)
		}
	}
	for _, v := range res.volumes {
		if err := c.deps.Volumes.Release(v); err != nil {
			c.logWarn("release volume", "volume", v.Name, "error", err)
		}
	}

	if res.cgroupsMade {
		res.cgroups.Remove(func(sub cgroup.Subsystem, err error) {
			c.logWarn("remove cgroup", "subsystem", string(sub), "error", err)
		})
	}

	if res.workDir != "" {
		if err := os.RemoveAll(res.workDir); err != nil {
			c.logWarn("remove work dir", "path", res.workDir, "error", err)
		}
	}

	c.res = nil
}

// truncateStdStreams empties the three std stream backing files; called only
// from an explicit Stop, never from Reap, Destroy or aging.
func (c *Container) truncateStdStreams() {
	for _, s := range []StdStream{c.Stdin, c.Stdout, c.Stderr} {
		if s.OutsidePath == "" {
			continue
		}
		if err := os.Truncate(s.OutsidePath, 0); err != nil && !os.IsNotExist(err) {
			c.logWarn("truncate std stream", "path", s.OutsidePath, "error", err)
		}
	}
}

func (c *Container) logWarn(msg string, kv ...interface{}) {
	if c.log != nil {
		c.log.Sugar().Warnw(msg, append([]interface{}{"container", c.Name}, kv...)...)
	}
}
