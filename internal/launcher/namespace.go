package launcher

import (
	"fmt"
	"os"

	"github.com/supervisr/core/internal/svcerr"
)

// namespaceKinds is the fixed set of namespace kinds the launcher snapshots
// and, for non-isolated containers, enters in this exact order: ipc, uts,
// net, pid, mnt. User ns is intentionally never entered.
var namespaceKinds = []string{"ipc", "uts", "net", "pid", "mnt"}

// nsSnapshot holds one open fd per namespace kind, taken from
// /proc/<pid>/ns/*, so the child can setns() into them after fork without
// racing a concurrent namespace change in the parent.
type nsSnapshot struct {
	fds map[string]*os.File
}

// snapshotNamespaces opens /proc/<pid>/ns/<kind> for every kind in
// namespaceKinds.
func snapshotNamespaces(pid int) (*nsSnapshot, error) {
	snap := &nsSnapshot{fds: make(map[string]*os.File, len(namespaceKinds))}
	for _, kind := range namespaceKinds {
		path := fmt.Sprintf("/proc/%d/ns/%s", pid, kind)
		f, err := os.Open(path)
		if err != nil {
			snap.Close()
			return nil, svcerr.Wrap(err, "open namespace handle %s", path)
		}
		snap.fds[kind] = f
	}
	return snap, nil
}

// Close releases every namespace fd in the snapshot.
func (s *nsSnapshot) Close() {
	for _, f := range s.fds {
		f.Close()
	}
}

// fd returns the raw descriptor for a namespace kind, used by setns().
func (s *nsSnapshot) fd(kind string) uintptr {
	if f, ok := s.fds[kind]; ok {
		return f.Fd()
	}
	return 0
}
