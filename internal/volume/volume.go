// Package volume is the small interface through which the container
// supervision core acquires and releases named volumes and loop-mounted root
// volumes. The volume/loopback filesystem manager itself is a separate
// component; this core only ever calls through this interface.
package volume

import "github.com/supervisr/core/internal/svcerr"

// Handle identifies one acquired volume attachment.
type Handle struct {
	Name       string
	TargetPath string
}

// Manager is implemented by the external volume/loopback subsystem.
type Manager interface {
	// AcquireRoot mounts source (a regular file, when Root points at one
	// instead of a directory) as a loop-backed root volume and returns its
	// handle.
	AcquireRoot(containerName, source string) (Handle, error)
	// AcquireNamed attaches an already-existing named volume to the
	// container's mount tree.
	AcquireNamed(containerName, volumeName string) (Handle, error)
	// Release detaches/unmounts a previously acquired volume.
	Release(h Handle) error
}

// unimplemented is the reference Manager returned when the daemon is run
// without a real volume backend wired in — both Acquire calls fail with
// NotSupported instead of panicking and Release succeeds as a no-op, so the
// rest of the core degrades gracefully when Root/Volumes properties are
// unused.
type unimplemented struct{}

// Unimplemented returns a Manager that refuses every acquire and treats
// Release as a no-op. It exists so internal/container can always hold a
// non-nil Manager.
func Unimplemented() Manager { return unimplemented{} }

func (unimplemented) AcquireRoot(_, _ string) (Handle, error) {
	return Handle{}, svcerr.New(svcerr.NotSupported, "no volume backend configured")
}

func (unimplemented) AcquireNamed(_, _ string) (Handle, error) {
	return Handle{}, svcerr.New(svcerr.NotSupported, "no volume backend configured")
}

func (unimplemented) Release(_ Handle) error { return nil }
