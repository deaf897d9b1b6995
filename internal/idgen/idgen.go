// Package idgen generates short identifiers: random correlation tags and
// traffic-class names derived from a container id.
package idgen

import "github.com/google/uuid"

// New returns a fresh random identifier's short form (the UUID's first
// component), good enough for a per-process-lifetime correlation tag.
func New() string {
	return uuid.New().String()[:8]
}

// TrafficClassName builds a net_cls-safe name for a container's traffic
// class, derived from the container id rather than randomly so it is
// reproducible across a Restore.
func TrafficClassName(containerID int) string {
	return "tc" + uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(containerID >> 8), byte(containerID)}).String()[:8]
}
