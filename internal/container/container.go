// Package container implements the Container Entity: per-container
// state, configuration properties, dirty tracking, persistence and the state
// machine. A Container never owns its parent or children; the Holder
// (internal/holder) owns the tree and hands out shared handles.
package container

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supervisr/core/internal/caps"
	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/netiface"
	"github.com/supervisr/core/internal/volume"
)

// State is one of the six container states.
type State string

const (
	Stopped State = "stopped"
	Dead    State = "dead"
	Running State = "running"
	Paused  State = "paused"
	Meta    State = "meta"
	Unknown State = "unknown"
)

// AccessLevel gates what a client identified at that level may do to a
// container; monotonically non-increasing from parent to child.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessReadOnly
	AccessChildOnly
	AccessNormal
	AccessSuperUser
	AccessInternal
)

// StdStream is one of the three typed stdio streams.
type StdStream struct {
	OutsidePath string
	LimitBytes  uint64
	RotatePolicy string
}

// NetworkConfig is a container's per-network resource shape.
type NetworkConfig struct {
	Link     string
	ClassID  uint32
	netiface.Limits
}

// Credentials is the ownership triple.
type Credentials struct {
	UID, GID           int
	SupplementaryGroups []int
}

// Resources bundles resource limits and policy tags a container carries.
type Resources struct {
	MemoryLimit     uint64
	MemoryGuarantee uint64
	AnonLimit       uint64
	DirtyLimit      uint64
	IOBpsLimit      uint64
	IOOpsLimit      uint64
	IOPolicy        cgroup.IOPolicy
	CPUPolicy       cgroup.CPUPolicy
	CPULimitCores   float64
	CPUGuaranteeCores float64
	RechargeOnPgfault bool
	Networks        map[string]NetworkConfig
}

// Capabilities bundles the three nested capability bitsets: ambient is
// always a subset of allowed, which is always a subset of limit.
type Capabilities struct {
	Ambient caps.Set // CapAmbient
	Allowed caps.Set // CapAllowed
	Limit   caps.Set // CapLimit
	// UserLimit is the explicit CapLimit the client requested, if any; nil
	// means "no explicit request", per SanitizeCapabilities.
	UserLimit *caps.Set
}

// Runtime is the process-lifecycle bookkeeping. Stop clears the three task
// pids; the timestamps, exit status, OOM flag and respawn count are kept.
type Runtime struct {
	TaskPid     int
	TaskVPid    int
	WaitTaskPid int
	StartTime   time.Time
	DeathTime   time.Time
	ExitStatus  int
	OOMKilled   bool
	RespawnCount int
}

// Resources allocated for a live container, released on every exit path of
// Stop/Destroy/Reap.
type liveResources struct {
	cgroups     cgroup.ContainerGroup
	cgroupsMade bool
	oomEventFD  int
	oomWatchID  uint64 // eventloop registration handle
	network     map[string]netiface.Handle
	root        *volume.Handle
	volumes     []volume.Handle
	workDir     string
}

// Container is the central entity: per-container state, configuration and
// runtime bookkeeping.
type Container struct {
	mu sync.Mutex // recursive-capable in spirit: internal helpers assume the caller holds it

	// Identity
	Name  string
	ID    int
	Level int

	parent   *Container // owning reference held via the Holder
	children []*Container

	State State

	Cred Credentials

	Command    string
	Cwd        string
	Root       string
	RootReadOnly bool
	Umask      uint32
	Env        []string
	Hostname   string
	Binds      []BindMount
	ResolvConf string
	Devices    []cgroup.DeviceRule

	Res Resources
	Cap Capabilities

	VirtMode caps.VirtMode
	Isolate  bool
	BindDNS  bool

	Stdin, Stdout, Stderr StdStream

	RT Runtime

	Access AccessLevel

	dirty      dirtySet
	pendingOld map[EProperty]string

	Weak bool

	AgingTime      time.Duration
	ToRespawn      bool
	MaxRespawns    int
	RespawnDelay   time.Duration

	Private string

	acquired int
	waiters  []chan struct{}

	res *liveResources

	deps *Deps

	log *zap.Logger
}

// BindMount is one bind-mount entry.
type BindMount struct {
	Source, Target string
	ReadOnly       bool
}

// New constructs a fresh Stopped container. id/level/parent are assigned by
// the Holder, not by the caller.
func New(name string, id, level int, parent *Container, log *zap.Logger) *Container {
	return &Container{
		Name:       name,
		ID:         id,
		Level:      level,
		parent:     parent,
		State:      Stopped,
		dirty:      newDirtySet(),
		pendingOld: make(map[EProperty]string),
		log:        log,
	}
}

// Parent returns the owning parent, or nil for the tree root.
func (c *Container) Parent() *Container { return c.parent }

// Children returns a snapshot of the current child list. Callers must hold
// the Holder lock when walking the tree.
func (c *Container) Children() []*Container {
	out := make([]*Container, len(c.children))
	copy(out, c.children)
	return out
}

// AddChild links child under c; called only by the Holder while holding its
// index lock.
func (c *Container) AddChild(child *Container) { c.children = append(c.children, child) }

// RemoveChild unlinks child from c; called only by the Holder.
func (c *Container) RemoveChild(child *Container) {
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

// Lock/Unlock expose the container's mutex to the Holder for nested,
// parent-before-child locking.
func (c *Container) Lock()   { c.mu.Lock() }
func (c *Container) Unlock() { c.mu.Unlock() }

// IsRoot reports whether this is the tree root (no parent).
func (c *Container) IsRoot() bool { return c.parent == nil }

// Acquire/Release implement the "Acquired" counter: Pause refuses if any
// descendant is acquired, Destroy fails Busy if target/descendant is
// acquired.
func (c *Container) Acquire() { c.acquired++ }

// TryAcquire acquires only if nothing else currently holds the container,
// used by internal lifecycle operations (Respawn) that must not stack with
// a client-held acquisition. Returns false without acquiring if busy.
func (c *Container) TryAcquire() bool {
	if c.acquired > 0 {
		return false
	}
	c.acquired++
	return true
}

func (c *Container) Release() {
	if c.acquired > 0 {
		c.acquired--
	}
}
func (c *Container) IsAcquired() bool { return c.acquired > 0 }

// MarkDirty flags a property as changed and not yet applied to the kernel.
func (c *Container) MarkDirty(tag EProperty) { c.dirty.set(tag) }

// AddWaiter registers a channel closed the next time this container's state
// changes; the caller removes it from the list on timeout.
func (c *Container) AddWaiter(ch chan struct{}) { c.waiters = append(c.waiters, ch) }

// RemoveWaiter drops a previously registered waiter.
func (c *Container) RemoveWaiter(ch chan struct{}) {
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// notifyWaiters wakes every registered waiter; called after any state
// transition.
func (c *Container) notifyWaiters() {
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
}

// HasTask reports whether the container currently owns a live task pid.
func (c *Container) HasTask() bool { return c.RT.TaskPid != 0 }
