// Package launcher implements the Task Launcher: it turns a
// validated container configuration into a running process correctly
// isolated, accounted, and rooted. It depends only on plain data (Spec) so
// internal/container can build one without an import cycle.
package launcher

import (
	"syscall"

	"github.com/syndtr/gocapability/capability"
)

// BindMount is one bind-mount entry for the new mount tree.
type BindMount struct {
	Source, Target string
	ReadOnly       bool
}

// DeviceRule mirrors internal/cgroup.DeviceRule without importing that
// package. Spec carries the rules, but the launcher does not act on them: it
// creates no /dev nodes and touches no cgroup knobs.
type DeviceRule struct {
	Type         byte
	Major, Minor int32
	Access       string
}

// Spec is everything the launcher needs to fork, isolate and exec one
// container's command.
type Spec struct {
	Name    string
	Command string
	Cwd     string

	Root         string
	RootReadOnly bool
	Umask        uint32
	Env          []string
	Hostname     string
	Binds        []BindMount
	ResolvConf   string
	Devices      []DeviceRule

	Credential syscall.Credential

	Isolate  bool // new pid, mount, ipc and uts namespaces
	OSMode   bool // Os virt mode: init-as-pid1

	CapAmbient []capability.Cap
	CapLimit   []capability.Cap

	// Stdin/Stdout/Stderr are the already-opened host-side file descriptors
	// the container's std streams are wired to. Rotation/truncation is the
	// container entity's job, not the launcher's.
	Stdin, Stdout, Stderr uintptr

	// AttachCgroups is invoked in the parent, right after fork, with the
	// child's real pid, to attach it to every subsystem cgroup the
	// container entity already created — done from the parent side here
	// since Go cannot safely run arbitrary container-package code in the
	// post-fork child.
	AttachCgroups func(pid int) error

	// ParentNSPid is the pid whose /proc/<pid>/ns/* namespaces new
	// non-isolated containers join; 0 means "use the supervisor's own
	// namespaces" (os.Getpid()).
	ParentNSPid int
}

// Result is what a successful Launch reports back: the child's real pid and
// its pid inside its own pid namespace (vpid).
type Result struct {
	RealPid int
	VPid    int
}
