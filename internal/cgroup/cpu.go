package cgroup

// CPUPolicy is the scheduling policy tag a container's cpu.* knobs are
// derived from.
type CPUPolicy string

const (
	CPUPolicyNormal CPUPolicy = "normal"
	CPUPolicyBatch  CPUPolicy = "batch"
	CPUPolicyIdle   CPUPolicy = "idle"
	CPUPolicyRT     CPUPolicy = "rt"
)

const cfsPeriodUS = 100000 // 100ms, the conventional CFS period

// SetCPUPolicy applies a CPU policy plus guarantee/limit (fractional cores)
// to the cpu hierarchy.
func (c Cgroup) SetCPUPolicy(policy CPUPolicy, guaranteeCores, limitCores float64) error {
	switch policy {
	case CPUPolicyIdle:
		if err := c.WriteUint("cpu.shares", 2); err != nil {
			return err
		}
	case CPUPolicyBatch:
		if err := c.WriteUint("cpu.shares", 512); err != nil {
			return err
		}
	default:
		shares := uint64(1024 * guaranteeCores)
		if shares == 0 {
			shares = 1024
		}
		if err := c.WriteUint("cpu.shares", shares); err != nil {
			return err
		}
	}
	if err := c.WriteUint("cpu.cfs_period_us", cfsPeriodUS); err != nil {
		return err
	}
	if limitCores <= 0 {
		return c.Set("cpu.cfs_quota_us", "-1") // unlimited
	}
	quota := uint64(limitCores * float64(cfsPeriodUS))
	return c.WriteUint("cpu.cfs_quota_us", quota)
}

// CPUUsage reads cpuacct.usage in nanoseconds.
func (c Cgroup) CPUUsage() (uint64, error) {
	return c.ReadUint("cpuacct.usage")
}

// SetCpuset writes cpuset.cpus.
func (c Cgroup) SetCpuset(cpus string) error {
	return c.Set("cpuset.cpus", cpus)
}
