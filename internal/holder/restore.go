package holder

import (
	"sort"

	"github.com/supervisr/core/internal/container"
)

// RestoreFromStorage repopulates the index from every kv node under the
// holder's store, used at daemon startup. Nodes are loaded by ascending id
// so that a parent (always allocated before its children, since ids are
// handed out in creation order) exists in the index by the time its child's
// node names it as parent.
func (h *Holder) RestoreFromStorage() error {
	ids, err := h.deps.Store.List()
	if err != nil {
		return err
	}
	sort.Ints(ids)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range ids {
		node, err := h.deps.Store.Load(id)
		if err != nil {
			if h.log != nil {
				h.log.Sugar().Warnw("skipping unreadable kv node", "id", id, "error", err)
			}
			continue
		}
		name, ok := node["name"]
		if !ok || name == RootName || name == SupervisorRootName {
			continue
		}
		if _, exists := h.byName[name]; exists {
			continue
		}

		parentName := ParentName(name)
		parent, ok := h.byName[parentName]
		if !ok {
			if h.log != nil {
				h.log.Sugar().Warnw("orphaned kv node: parent missing", "container", name, "parent", parentName)
			}
			continue
		}

		c := container.New(name, id, parent.Level+1, parent, h.log)
		c.WireDeps(h.deps)
		if err := c.Load(h.deps.Store); err != nil {
			if h.log != nil {
				h.log.Sugar().Warnw("load container from storage", "container", name, "error", err)
			}
			continue
		}

		parent.Lock()
		parent.AddChild(c)
		parent.Unlock()

		h.byName[name] = c
		h.ids.reserve(id)
	}
	return nil
}
