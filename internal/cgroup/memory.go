package cgroup

import "github.com/supervisr/core/internal/svcerr"

// SetMemoryLimit writes memory.limit_in_bytes. EBUSY is surfaced as
// InvalidValue("limit too low").
func (c Cgroup) SetMemoryLimit(bytes uint64) error {
	if err := c.WriteUint("memory.limit_in_bytes", bytes); err != nil {
		return err
	}
	return nil
}

// SetMemorySoftLimit writes memory.soft_limit_in_bytes, used both for the
// configured memory_guarantee property and for the Meta-container 1MiB
// soft-limit rule.
func (c Cgroup) SetMemorySoftLimit(bytes uint64) error {
	return c.WriteUint("memory.soft_limit_in_bytes", bytes)
}

// SetAnonLimit writes the memory.anon.limit_in_bytes knob where supported.
func (c Cgroup) SetAnonLimit(bytes uint64) error {
	if !c.KnobExists("memory.anon.limit_in_bytes") {
		return svcerr.New(svcerr.NotSupported, "anon memory limit not supported")
	}
	return c.WriteUint("memory.anon.limit_in_bytes", bytes)
}

// MemoryUsage reads memory.usage_in_bytes.
func (c Cgroup) MemoryUsage() (uint64, error) {
	return c.ReadUint("memory.usage_in_bytes")
}

// SetRechargeOnPgfault toggles memory.recharge_on_pgfault, when present.
func (c Cgroup) SetRechargeOnPgfault(on bool) error {
	if !c.KnobExists("memory.recharge_on_pgfault") {
		return svcerr.New(svcerr.NotSupported, "recharge_on_pgfault not supported")
	}
	v := uint64(0)
	if on {
		v = 1
	}
	return c.WriteUint("memory.recharge_on_pgfault", v)
}

// OOMEventControlPaths returns the paths of the two files an OOM eventfd
// registration opens.
func (c Cgroup) OOMEventControlPaths() (oomControl, eventControl string) {
	return c.Path() + "/memory.oom_control", c.Path() + "/cgroup.event_control"
}
