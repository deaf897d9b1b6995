package container

import (
	"strings"

	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/svcerr"
)

// dynamicPush maps a dirty-bitset tag to the controller write it feeds;
// properties with no entry here are pure in-memory bookkeeping (respawn
// policy, aging_time, private, ...) and never need a kernel push.
var dynamicPush = map[EProperty]func(c *Container) error{
	PropMemoryLimit:       (*Container).pushMemory,
	PropMemoryGuarantee:   (*Container).pushMemory,
	PropAnonLimit:         (*Container).pushMemory,
	PropRechargeOnPgfault: (*Container).pushMemory,
	PropIOLimit:           (*Container).pushIO,
	PropIOOpsLimit:        (*Container).pushIO,
	PropIOPolicy:          (*Container).pushIO,
	PropCPUPolicy:         (*Container).pushCPU,
	PropCPULimit:          (*Container).pushCPU,
	PropCPUGuarantee:      (*Container).pushCPU,
	PropNetPriority:       (*Container).pushNetwork,
	PropNetLimit:          (*Container).pushNetwork,
	PropNetGuarantee:      (*Container).pushNetwork,
}

func (c *Container) pushMemory() error {
	g := c.res.cgroups
	if err := g.Memory.SetMemoryLimit(c.Res.MemoryLimit); err != nil {
		return err
	}
	if c.Res.MemoryGuarantee > 0 {
		if err := g.Memory.SetMemorySoftLimit(c.Res.MemoryGuarantee); err != nil {
			return err
		}
	}
	if c.Res.AnonLimit > 0 {
		if err := g.Memory.SetAnonLimit(c.Res.AnonLimit); err != nil && !svcerr.Is(err, svcerr.NotSupported) {
			return err
		}
	}
	if err := g.Memory.SetRechargeOnPgfault(c.Res.RechargeOnPgfault); err != nil && !svcerr.Is(err, svcerr.NotSupported) {
		return err
	}
	return nil
}

func (c *Container) pushIO() error {
	g := c.res.cgroups
	if c.Res.IOPolicy != "" {
		if err := g.BlkIO.SetIOPolicy(c.Res.IOPolicy); err != nil {
			return err
		}
	}
	if c.Res.IOBpsLimit > 0 {
		if err := g.BlkIO.SetIOLimitBps("", c.Res.IOBpsLimit, c.Res.IOBpsLimit); err != nil {
			return err
		}
	}
	if c.Res.IOOpsLimit > 0 {
		if err := g.BlkIO.SetIOLimitIops("", c.Res.IOOpsLimit, c.Res.IOOpsLimit); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) pushCPU() error {
	policy := c.Res.CPUPolicy
	if policy == "" {
		policy = cgroup.CPUPolicyNormal
	}
	return c.res.cgroups.CPU.SetCPUPolicy(policy, c.Res.CPUGuaranteeCores, c.Res.CPULimitCores)
}

func (c *Container) pushNetwork() error {
	for name, h := range c.res.network {
		cfg, ok := c.Res.Networks[name]
		if !ok {
			continue
		}
		if err := h.Update(cfg.Limits); err != nil {
			return err
		}
	}
	return nil
}

// applyResourceKnobs pushes every resource-shaped field unconditionally,
// used once at Start before any property has been marked dirty.
func (c *Container) applyResourceKnobs() error {
	if err := c.pushMemory(); err != nil {
		return err
	}
	if err := c.pushIO(); err != nil {
		return err
	}
	if err := c.pushCPU(); err != nil {
		return err
	}
	return c.pushNetwork()
}

// ApplyDynamicProperties pushes every dirty property to its controller. On
// a per-property failure, the in-memory value is rolled back to what it was
// before the dirtying Set and the dirty bit stays set for the next attempt;
// other dirty properties still get their chance. Returns the first error
// encountered, if any, after every dirty tag has been tried.
func (c *Container) ApplyDynamicProperties() error {
	var firstErr error
	var failedNames []string
	for _, tag := range c.dirty.dirtyTags() {
		push, ok := dynamicPush[tag]
		if !ok {
			c.dirty.clear(tag)
			delete(c.pendingOld, tag)
			continue
		}
		if err := push(c); err != nil {
			prop := propertyByTag(tag)
			if old, had := c.pendingOld[tag]; had && prop != nil {
				_ = prop.SetFromRestore(c, old)
			}
			if firstErr == nil {
				firstErr = err
			}
			if prop != nil {
				failedNames = append(failedNames, prop.Name)
			}
			continue
		}
		c.dirty.clear(tag)
		delete(c.pendingOld, tag)
	}
	if firstErr != nil {
		return svcerr.Wrap(firstErr, "apply dynamic properties (failed: %s)", strings.Join(failedNames, ","))
	}
	return nil
}

func propertyByTag(tag EProperty) *property {
	for _, p := range registry {
		if p.Tag == tag {
			return p
		}
	}
	return nil
}
