package cgroup

import (
	"path/filepath"

	"github.com/supervisr/core/internal/svcerr"
)

// Set is the Cgroup Controller Set: a table of the seven subsystems, each
// with a root mount path, giving the rest of the daemon a typed, uniform
// view over them.
type Set struct {
	roots    map[Subsystem]string
	features Features
}

// NewSet builds a Set rooted at cgroupRoot (typically /sys/fs/cgroup), one
// subdirectory per subsystem as cgroup v1 lays them out. It probes the root
// cgroup once for feature-detection predicates.
func NewSet(cgroupRoot string) (*Set, error) {
	roots := make(map[Subsystem]string, len(All))
	for _, sub := range All {
		roots[sub] = filepath.Join(cgroupRoot, string(sub))
	}
	s := &Set{roots: roots}
	features, err := detectFeatures(s)
	if err != nil {
		return nil, svcerr.Wrap(err, "detect cgroup features")
	}
	s.features = features
	return s, nil
}

// Features returns the feature-detection predicates computed at startup.
func (s *Set) Features() Features { return s.features }

// ContainerGroup bundles the seven per-subsystem cgroup handles allocated for
// one container's logical path.
type ContainerGroup struct {
	set  *Set
	name string

	Memory  Cgroup
	Freezer Cgroup
	CPU     Cgroup
	CPUAcct Cgroup
	BlkIO   Cgroup
	NetCls  Cgroup
	Devices Cgroup
}

// Group addresses the per-subsystem cgroups for a container name without
// creating them.
func (s *Set) Group(name string) ContainerGroup {
	return ContainerGroup{
		set:     s,
		name:    name,
		Memory:  s.Of(Memory, name),
		Freezer: s.Of(Freezer, name),
		CPU:     s.Of(CPU, name),
		CPUAcct: s.Of(CPUAcct, name),
		BlkIO:   s.Of(BlkIO, name),
		NetCls:  s.Of(NetCls, name),
		Devices: s.Of(Devices, name),
	}
}

// all returns the seven handles in the stable iteration order.
func (g ContainerGroup) all() []Cgroup {
	return []Cgroup{g.Memory, g.Freezer, g.CPU, g.CPUAcct, g.BlkIO, g.NetCls, g.Devices}
}

// Create creates every subsystem's directory for this container. On any
// failure, directories already created are removed again (partial
// allocations are never left behind).
func (g ContainerGroup) Create() (err error) {
	created := make([]Cgroup, 0, len(g.all()))
	defer func() {
		if err != nil {
			for _, c := range created {
				_ = c.Remove()
			}
		}
	}()
	for _, c := range g.all() {
		if err = c.Create(); err != nil {
			return err
		}
		created = append(created, c)
	}
	return nil
}

// AddProc attaches pid to every subsystem's cgroup for this container.
func (g ContainerGroup) AddProc(pid int) error {
	for _, c := range g.all() {
		if err := c.Attach(pid); err != nil {
			return err
		}
	}
	return nil
}

// Remove removes every subsystem's cgroup, logging and continuing past
// individual failures.
// The caller supplies onErr to record the per-hierarchy failure.
func (g ContainerGroup) Remove(onErr func(sub Subsystem, err error)) {
	for _, c := range g.all() {
		if err := c.Remove(); err != nil {
			if onErr != nil {
				onErr(c.Subsystem, err)
			}
		}
	}
}

// IsEmpty reports whether the freezer cgroup (the canonical "is this
// container's process tree gone" signal) holds no processes.
func (g ContainerGroup) IsEmpty() (bool, error) {
	return g.Freezer.IsEmpty()
}
