package cgroup

import "github.com/supervisr/core/internal/svcerr"

// FreezerState is the text freezer.state reports.
type FreezerState string

const (
	FreezerThawed   FreezerState = "THAWED"
	FreezerFrozen   FreezerState = "FROZEN"
	FreezerFreezing FreezerState = "FREEZING"
)

// Freeze requests the cgroup be frozen; callers poll IsFrozen/WaitState for
// completion since the kernel transitions through FREEZING asynchronously.
func (c Cgroup) Freeze() error {
	return c.Set("freezer.state", string(FreezerFrozen))
}

// Thaw requests the cgroup be thawed.
func (c Cgroup) Thaw() error {
	return c.Set("freezer.state", string(FreezerThawed))
}

// FreezerStateNow reads freezer.state.
func (c Cgroup) FreezerStateNow() (FreezerState, error) {
	s, err := c.Get("freezer.state")
	if err != nil {
		return "", err
	}
	return FreezerState(s), nil
}

// IsFrozen reports whether this cgroup itself reports FROZEN, not merely
// whether an ancestor is frozen.
func (c Cgroup) IsFrozen() (bool, error) {
	s, err := c.FreezerStateNow()
	if err != nil {
		return false, err
	}
	return s == FreezerFrozen, nil
}

// IsParentFreezing reports whether an ancestor cgroup is frozen/freezing by
// inspecting the given ancestor handle; callers refuse to act on a container
// whose parent is frozen.
func (parent Cgroup) IsParentFreezing() (bool, error) {
	s, err := parent.FreezerStateNow()
	if err != nil {
		return false, err
	}
	return s == FreezerFrozen || s == FreezerFreezing, nil
}

// WaitState polls until the freezer reports want or the stop channel closes,
// returning svcerr.Busy if stop fires first. Callers enforce the deadline via
// the stop channel (see container.WaitDeadline).
func (c Cgroup) WaitState(want FreezerState, stop <-chan struct{}, poll func()) error {
	for {
		s, err := c.FreezerStateNow()
		if err != nil {
			return err
		}
		if s == want {
			return nil
		}
		select {
		case <-stop:
			return svcerr.New(svcerr.Busy, "timed out waiting for freezer state %s", want)
		default:
			poll()
		}
	}
}
