// Package cgroup gives the rest of the supervision core a typed, uniform view
// of the fixed set of kernel cgroup subsystems a container needs: memory,
// freezer, cpu, cpuacct, blkio, net_cls, devices. Resolving a subsystem's
// mount path never touches the filesystem; creation/removal/knob I/O are
// explicit calls.
package cgroup

import (
	"os"
	"path/filepath"
)

// Subsystem names one of the seven kernel resource controllers this core
// consumes.
type Subsystem string

// The fixed subsystem table.
const (
	Memory  Subsystem = "memory"
	Freezer Subsystem = "freezer"
	CPU     Subsystem = "cpu"
	CPUAcct Subsystem = "cpuacct"
	BlkIO   Subsystem = "blkio"
	NetCls  Subsystem = "net_cls"
	Devices Subsystem = "devices"
)

// All enumerates every subsystem the Set manages, in a stable order used for
// deterministic create/remove iteration.
var All = []Subsystem{Memory, Freezer, CPU, CPUAcct, BlkIO, NetCls, Devices}

// hierarchyLeader maps a subsystem to the subsystem whose mount it is
// co-mounted with on this host, deduplicating hierarchies the way real cgroup
// v1 mounts often combine cpu,cpuacct or net_cls,net_prio. Set construction
// does not populate it: every subsystem gets its own root directory.
type hierarchyLeader struct {
	leader Subsystem
}

// Root returns the mount path for a subsystem: the Set's cgroup root joined
// with the subsystem name, as recorded by NewSet. It is a pure lookup; it
// never creates directories.
func (s *Set) Root(sub Subsystem) string {
	return s.roots[sub]
}

// cgroupPath addresses a cgroup by logical path /<root>/<name> under the
// given subsystem's mount root without touching the filesystem.
func cgroupPath(root, name string) string {
	return filepath.Join(root, name)
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
