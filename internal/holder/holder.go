// Package holder implements the Container Holder: the single authoritative
// index of every container, owning the name->container map, id allocation,
// and the parent/child tree structure that individual Containers never own
// themselves.
package holder

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/svcerr"
)

// Holder owns Map<name, *Container> behind a single mutex.
type Holder struct {
	mu     sync.Mutex
	byName map[string]*container.Container
	ids    *idAllocator

	deps *container.Deps
	log  *zap.Logger
}

// New constructs a Holder with its two reserved root containers already
// present: RootName (the tree root, level 0) and SupervisorRootName (level
// 1, the parent of every user-created container).
func New(deps *container.Deps, log *zap.Logger) *Holder {
	h := &Holder{
		byName: make(map[string]*container.Container),
		ids:    newIDAllocator(),
		deps:   deps,
		log:    log,
	}
	rootID, _ := h.ids.alloc()
	root := container.New(RootName, rootID, 0, nil, log)
	root.WireDeps(deps)
	h.byName[RootName] = root

	supID, _ := h.ids.alloc()
	sup := container.New(SupervisorRootName, supID, 1, root, log)
	sup.WireDeps(deps)
	root.AddChild(sup)
	h.byName[SupervisorRootName] = sup

	return h
}

// Root returns the tree root container.
func (h *Holder) Root() *container.Container {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byName[RootName]
}

// Create validates name, locates its parent (rejecting if missing),
// allocates an id, and inserts a fresh Stopped container into the index.
func (h *Holder) Create(name string, cred container.Credentials) (*container.Container, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.byName[name]; exists {
		return nil, svcerr.New(svcerr.ContainerAlreadyExists, "container %q already exists", name)
	}

	parentName := ParentName(name)
	parent, ok := h.byName[parentName]
	if !ok {
		return nil, svcerr.New(svcerr.ContainerDoesNotExist, "parent %q of %q does not exist", parentName, name)
	}

	id, err := h.ids.alloc()
	if err != nil {
		return nil, err
	}

	c := container.New(name, id, parent.Level+1, parent, h.log)
	c.WireDeps(h.deps)
	c.Cred = cred

	parent.Lock()
	parent.AddChild(c)
	parent.Unlock()

	h.byName[name] = c
	if err := c.Save(h.deps.Store); err != nil && h.log != nil {
		h.log.Sugar().Warnw("save new container", "container", name, "error", err)
	}
	return c, nil
}

// Get returns the container registered under name, or ContainerDoesNotExist.
func (h *Holder) Get(name string) (*container.Container, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.byName[name]
	if !ok {
		return nil, svcerr.New(svcerr.ContainerDoesNotExist, "container %q does not exist", name)
	}
	return c, nil
}

// Destroy removes name from the index after the container itself agrees to
// be destroyed; refuses containers with children and the two reserved
// roots, which the Holder alone is positioned to check.
func (h *Holder) Destroy(name string) error {
	if name == RootName || name == SupervisorRootName {
		return svcerr.New(svcerr.InvalidState, "destroy: %q is a reserved root", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.byName[name]
	if !ok {
		return svcerr.New(svcerr.ContainerDoesNotExist, "container %q does not exist", name)
	}
	c.Lock()
	hasChildren := len(c.Children()) > 0
	if hasChildren {
		c.Unlock()
		return svcerr.New(svcerr.InvalidState, "destroy: %q has children", name)
	}
	err := c.Destroy()
	c.Unlock()
	if err != nil {
		return err
	}

	parent := c.Parent()
	if parent != nil {
		parent.Lock()
		parent.RemoveChild(c)
		parent.Unlock()
	}
	delete(h.byName, name)
	h.ids.release(c.ID)
	return nil
}

// List returns every registered container name in sorted order.
func (h *Holder) List() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.byName))
	for name := range h.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByTaskPid finds the container whose real task pid matches pid, whatever
// its state, used by the Exit event dispatch.
func (h *Holder) ByTaskPid(pid int) (*container.Container, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.byName {
		c.Lock()
		taskPid := c.RT.TaskPid
		c.Unlock()
		if taskPid == pid {
			return c, true
		}
	}
	return nil, false
}

// snapshot returns every registered container, used by Heartbeat, which
// must not hold the index lock while it locks individual containers.
func (h *Holder) snapshot() []*container.Container {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*container.Container, 0, len(h.byName))
	for _, c := range h.byName {
		out = append(out, c)
	}
	return out
}
