package container

import (
	"strconv"

	"github.com/supervisr/core/internal/kv"
)

// Save writes every registry property plus the mandatory id/name/state keys
// to the kv node. Save failure after a successful state transition is the
// caller's responsibility to log and ignore: the next restore reconciles
// state from whatever was last durably saved.
func (c *Container) Save(store *kv.Store) error {
	node := make(kv.Node, len(registry)+3)
	node["id"] = strconv.Itoa(c.ID)
	node["name"] = c.Name
	node["state"] = string(c.State)
	for name, p := range registry {
		node[name] = p.Get(c)
	}
	return store.Save(c.ID, node)
}

// Load reads the kv node back, routing each key through the property
// registry's restore-setter. Unknown keys and per-property restore failures
// are skipped rather than aborting the whole restore: the affected property
// is skipped and the container proceeds. state is applied last, after every
// property has settled.
func (c *Container) Load(store *kv.Store) error {
	node, err := store.Load(c.ID)
	if err != nil {
		return err
	}
	var state State
	for key, val := range node {
		switch key {
		case "id", "name":
			continue
		case "state":
			state = State(val)
			continue
		}
		p, ok := registry[key]
		if !ok {
			continue
		}
		if err := p.SetFromRestore(c, val); err != nil {
			if c.log != nil {
				c.log.Sugar().Warnw("skipping property on restore", "container", c.Name, "property", key, "error", err)
			}
			continue
		}
	}
	if state != "" {
		c.State = state
	}
	return nil
}
