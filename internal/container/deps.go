package container

import (
	"context"
	"time"

	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/kv"
	"github.com/supervisr/core/internal/launcher"
	"github.com/supervisr/core/internal/netiface"
	"github.com/supervisr/core/internal/volume"
)

// Scheduler is the slice of the event loop a Container needs: OOM eventfd
// registration and one-shot deadline callbacks (respawn delay, aging
// timeout). Implemented by internal/eventloop; defined here so this package
// never imports it back.
type Scheduler interface {
	// RegisterOOMFD registers fd for readability, invoking onReadable from
	// the loop goroutine when the kernel signals an OOM kill.
	RegisterOOMFD(fd int, onReadable func()) (watchID uint64, err error)
	UnregisterOOMFD(watchID uint64)
	// ScheduleAfter invokes fn once, after d, from the loop goroutine; the
	// returned cancel func is a no-op once fn has already fired.
	ScheduleAfter(d time.Duration, fn func()) (cancel func())
}

// Deps bundles every external collaborator a Container needs to allocate and
// release resources and launch its task; shared across every Container the
// Holder manages.
type Deps struct {
	Cgroups     *cgroup.Set
	Volumes     volume.Manager
	NetAttach   func() netiface.Handle
	Launch      func(ctx context.Context, spec *launcher.Spec) (*launcher.Result, error)
	Scheduler   Scheduler
	Store       *kv.Store
	WorkDirRoot string

	DefaultAgingTime    time.Duration
	DefaultRespawnDelay time.Duration
}

// WireDeps attaches the shared collaborator set; called once by the Holder
// right after New, before any lifecycle operation runs.
func (c *Container) WireDeps(d *Deps) { c.deps = d }
