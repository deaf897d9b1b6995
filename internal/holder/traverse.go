package holder

import "github.com/supervisr/core/internal/container"

// Walk order for Preorder/Postorder.
type Walk int

const (
	// Preorder visits a container before its children (parent lock acquired
	// and released before descending).
	Preorder Walk = iota
	// Postorder visits a container after its children (used by operations
	// that must tear down leaves first, e.g. a recursive stop).
	Postorder
)

// Traverse walks the subtree rooted at name, calling fn on each container in
// the requested order. Each container is locked only while its children and
// state are read; fn runs with no container lock held, and no lock is held
// across the recursive descent into children. A container in the Unknown
// state is skipped together with its whole subtree.
func (h *Holder) Traverse(name string, order Walk, fn func(*container.Container)) error {
	root, err := h.Get(name)
	if err != nil {
		return err
	}
	h.traverse(root, order, fn)
	return nil
}

func (h *Holder) traverse(c *container.Container, order Walk, fn func(*container.Container)) {
	c.Lock()
	children := c.Children()
	state := c.State
	c.Unlock()

	if state == container.Unknown {
		return
	}

	if order == Preorder {
		fn(c)
	}
	for _, child := range children {
		h.traverse(child, order, fn)
	}
	if order == Postorder {
		fn(c)
	}
}

// Heartbeat walks every registered container not in the Unknown state and
// invokes fn with no container lock held, used by the periodic aging-time
// sweep. Containers are visited in an unspecified order with no subtree
// relationship assumed.
func (h *Holder) Heartbeat(fn func(*container.Container)) {
	for _, c := range h.snapshot() {
		c.Lock()
		state := c.State
		c.Unlock()
		if state == container.Unknown {
			continue
		}
		fn(c)
	}
}
