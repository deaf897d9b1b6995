// Package netiface is the small interface the container supervision core
// consumes to attach a container to a preconfigured host network and enforce
// per-network {rate, ceiling, priority} maps. Full network
// overlay construction is explicitly out of scope; this package only builds
// the htb traffic-class leaf for an already-existing host link.
package netiface

import "github.com/supervisr/core/internal/svcerr"

// Limits is the per-network resource triple a container's traffic class
// enforces.
type Limits struct {
	RateBps    uint64
	CeilBps    uint64
	Priority   uint32
}

// Handle is the network resource a Container owns while Running/Meta/Paused.
type Handle interface {
	// Attach creates the traffic class for this container on the given host
	// link under classID. It does not write any net_cls.classid knob.
	Attach(link string, classID uint32, limits Limits) error
	// Update adjusts an already-attached traffic class's limits (dynamic
	// net_limit/net_guarantee/net_priority properties).
	Update(limits Limits) error
	// Detach removes the traffic class. Released on every container exit
	// path, not just a clean stop.
	Detach() error
}

// unimplemented is the reference Handle returned when the daemon is run
// without a real htb backend wired in: Attach and Update fail with
// NotSupported instead of panicking, and Detach succeeds as a no-op, so a
// container with no configured networks is unaffected and one with networks
// configured gets a clear error rather than a nil-handle crash.
type unimplemented struct{}

// Unimplemented returns a Handle that refuses Attach and Update and treats
// Detach as a no-op.
func Unimplemented() Handle { return unimplemented{} }

func (unimplemented) Attach(_ string, _ uint32, _ Limits) error {
	return svcerr.New(svcerr.NotSupported, "no network backend configured")
}

func (unimplemented) Update(_ Limits) error {
	return svcerr.New(svcerr.NotSupported, "no network backend configured")
}

func (unimplemented) Detach() error { return nil }
