package cgroup

import (
	"fmt"

	"github.com/supervisr/core/internal/svcerr"
)

// IOPolicy is the blkio weight/policy tag.
type IOPolicy string

const (
	IOPolicyNormal IOPolicy = "normal"
	IOPolicyBatch  IOPolicy = "batch"
)

// SetIOPolicy writes blkio.weight according to the policy tag, when the
// weight knob is present (supports_io_policy).
func (c Cgroup) SetIOPolicy(policy IOPolicy) error {
	if !c.KnobExists("blkio.weight") {
		return svcerr.New(svcerr.NotSupported, "io policy not supported")
	}
	weight := uint64(500)
	if policy == IOPolicyBatch {
		weight = 100
	}
	return c.WriteUint("blkio.weight", weight)
}

// SetIOLimitBps writes a per-device bps throttle to
// blkio.throttle.read/write_bps_device.
func (c Cgroup) SetIOLimitBps(device string, read, write uint64) error {
	if read > 0 {
		if err := c.Set("blkio.throttle.read_bps_device", fmt.Sprintf("%s %d", device, read)); err != nil {
			return err
		}
	}
	if write > 0 {
		if err := c.Set("blkio.throttle.write_bps_device", fmt.Sprintf("%s %d", device, write)); err != nil {
			return err
		}
	}
	return nil
}

// SetIOLimitIops writes a per-device iops throttle.
func (c Cgroup) SetIOLimitIops(device string, read, write uint64) error {
	if read > 0 {
		if err := c.Set("blkio.throttle.read_iops_device", fmt.Sprintf("%s %d", device, read)); err != nil {
			return err
		}
	}
	if write > 0 {
		if err := c.Set("blkio.throttle.write_iops_device", fmt.Sprintf("%s %d", device, write)); err != nil {
			return err
		}
	}
	return nil
}
