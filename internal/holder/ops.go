package holder

import (
	"context"
	"time"
)

// Every wrapper here locks the target container before delegating to the
// lifecycle operation of the same name, since container.Container's
// lifecycle methods assume the caller already holds the container's mutex
// (the Holder is the only caller positioned to take that lock safely,
// since it alone knows the parent-before-child ordering).

// Start locks and starts the named container.
func (h *Holder) Start(ctx context.Context, name string, meta bool) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Start(ctx, meta)
}

// Stop locks and stops the named container.
func (h *Holder) Stop(name string, deadline time.Duration) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Stop(deadline)
}

// Pause locks and pauses the named container.
func (h *Holder) Pause(name string) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Pause()
}

// Resume locks and resumes the named container.
func (h *Holder) Resume(name string) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Resume()
}

// Reap locks and reaps the named container, called by the reaper once a
// task's exit status is known.
func (h *Holder) Reap(name string, status int, oomKilled bool) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Reap(status, oomKilled)
}

// Exit locks and exits the named container and its subtree, called by the
// reaper for a container whose task exited.
func (h *Holder) Exit(name string, status int, oomKilled bool) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Exit(status, oomKilled)
}

// Respawn locks and respawns the named container.
func (h *Holder) Respawn(ctx context.Context, name string) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.Respawn(ctx)
}

// SetProperty locks and applies a named property change, marking it dirty
// for the next ApplyDynamicProperties pass.
func (h *Holder) SetProperty(name, property, value string) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.SetProperty(property, value)
}

// ApplyDynamicProperties locks and pushes every dirty property of the named
// container to the kernel.
func (h *Holder) ApplyDynamicProperties(name string) error {
	c, err := h.Get(name)
	if err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	return c.ApplyDynamicProperties()
}
