// Package caps computes the three capability bitsets a container carries
// (CapAmbient, CapAllowed, CapLimit) and their sanitization formula, on top
// of github.com/syndtr/gocapability's capability vocabulary rather than
// hand-rolled bit twiddling.
package caps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/syndtr/gocapability/capability"
)

// Set is an immutable bitset of Linux capabilities.
type Set map[capability.Cap]struct{}

// NewSet builds a Set from a list of capabilities.
func NewSet(caps ...capability.Cap) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Union returns the union of sets.
func Union(sets ...Set) Set {
	out := make(Set)
	for _, s := range sets {
		for c := range s {
			out[c] = struct{}{}
		}
	}
	return out
}

// Intersect returns the intersection of sets. An empty argument list yields
// the empty set, not "everything" — callers must seed with a ceiling first.
func Intersect(sets ...Set) Set {
	if len(sets) == 0 {
		return make(Set)
	}
	out := make(Set, len(sets[0]))
	for c := range sets[0] {
		out[c] = struct{}{}
	}
	for _, s := range sets[1:] {
		for c := range out {
			if _, ok := s[c]; !ok {
				delete(out, c)
			}
		}
	}
	return out
}

// Subset reports whether a is a subset of b.
func Subset(a, b Set) bool {
	for c := range a {
		if _, ok := b[c]; !ok {
			return false
		}
	}
	return true
}

// All returns the set of every capability known to the running kernel's
// capability.List(), used as the ceiling for a root-owned container.
func All() Set {
	return NewSet(capability.List()...)
}

// VirtMode distinguishes the two virtualization modes a container runs
// under.
type VirtMode string

const (
	ModeApp VirtMode = "app"
	ModeOS  VirtMode = "os"
)

// AppModeCapabilities is the ceiling non-root App-mode containers get.
var AppModeCapabilities = NewSet(
	capability.CAP_CHOWN,
	capability.CAP_DAC_OVERRIDE,
	capability.CAP_FOWNER,
	capability.CAP_FSETID,
	capability.CAP_KILL,
	capability.CAP_SETGID,
	capability.CAP_SETUID,
	capability.CAP_SETPCAP,
	capability.CAP_NET_BIND_SERVICE,
	capability.CAP_NET_RAW,
	capability.CAP_SYS_CHROOT,
	capability.CAP_MKNOD,
	capability.CAP_AUDIT_WRITE,
	capability.CAP_SETFCAP,
)

// OsModeCapabilities is the broader ceiling Os-mode (init-as-pid1) containers
// get, adding capabilities init systems commonly need.
var OsModeCapabilities = Union(AppModeCapabilities, NewSet(
	capability.CAP_SYS_ADMIN,
	capability.CAP_NET_ADMIN,
	capability.CAP_SYS_RESOURCE,
	capability.CAP_SYS_PTRACE,
	capability.CAP_SYS_BOOT,
	capability.CAP_IPC_LOCK,
))

// AppModeSuidCeiling is the tighter ceiling applied to setuid-gained
// capabilities (CapLimit) under App mode.
var AppModeSuidCeiling = NewSet(
	capability.CAP_CHOWN,
	capability.CAP_DAC_OVERRIDE,
	capability.CAP_FOWNER,
	capability.CAP_FSETID,
	capability.CAP_SETGID,
	capability.CAP_SETUID,
)

// PolicyCeiling returns the bounding ceiling capabilities for a container
// with the given virtualization mode and ownership.
func PolicyCeiling(mode VirtMode, ownerIsRoot bool) Set {
	if ownerIsRoot {
		return All()
	}
	if mode == ModeOS {
		return OsModeCapabilities
	}
	return AppModeCapabilities
}

// SuidCeiling returns the ceiling used for setuid-gained capabilities.
func SuidCeiling(mode VirtMode, ownerIsRoot bool) Set {
	if ownerIsRoot {
		return All()
	}
	if mode == ModeOS {
		return OsModeCapabilities
	}
	return AppModeSuidCeiling
}

// Apply sets the effective/permitted/inheritable/ambient/bounding sets on the
// current process via gocapability, used by the launcher's post-fork child
// before exec: ambient comes from CapAmbient, the bounding set from
// CapLimit.
func Apply(ambient, limit Set) error {
	c, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := c.Load(); err != nil {
		return err
	}
	c.Clear(capability.CAPS | capability.BOUNDS | capability.AMBS)
	for cap := range limit {
		c.Set(capability.BOUNDING, cap)
	}
	for cap := range ambient {
		c.Set(capability.EFFECTIVE|capability.PERMITTED|capability.INHERITABLE, cap)
		c.Set(capability.AMBIENT, cap)
	}
	return c.Apply(capability.CAPS | capability.BOUNDS | capability.AMBS)
}

// ToList converts a Set to a slice, useful for persistence/serialization.
func (s Set) ToList() []capability.Cap {
	out := make([]capability.Cap, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// byName maps the canonical "CAP_XXX" spelling to the vocabulary entry, for
// every capability referenced by PolicyCeiling/SuidCeiling; the "capabilities"
// property only ever needs to parse/format the ones a ceiling could grant.
var byName = map[string]capability.Cap{
	"CAP_CHOWN":            capability.CAP_CHOWN,
	"CAP_DAC_OVERRIDE":     capability.CAP_DAC_OVERRIDE,
	"CAP_FOWNER":           capability.CAP_FOWNER,
	"CAP_FSETID":           capability.CAP_FSETID,
	"CAP_KILL":             capability.CAP_KILL,
	"CAP_SETGID":           capability.CAP_SETGID,
	"CAP_SETUID":           capability.CAP_SETUID,
	"CAP_SETPCAP":          capability.CAP_SETPCAP,
	"CAP_NET_BIND_SERVICE": capability.CAP_NET_BIND_SERVICE,
	"CAP_NET_RAW":          capability.CAP_NET_RAW,
	"CAP_SYS_CHROOT":       capability.CAP_SYS_CHROOT,
	"CAP_MKNOD":            capability.CAP_MKNOD,
	"CAP_AUDIT_WRITE":      capability.CAP_AUDIT_WRITE,
	"CAP_SETFCAP":          capability.CAP_SETFCAP,
	"CAP_SYS_ADMIN":        capability.CAP_SYS_ADMIN,
	"CAP_NET_ADMIN":        capability.CAP_NET_ADMIN,
	"CAP_SYS_RESOURCE":     capability.CAP_SYS_RESOURCE,
	"CAP_SYS_PTRACE":       capability.CAP_SYS_PTRACE,
	"CAP_SYS_BOOT":         capability.CAP_SYS_BOOT,
	"CAP_IPC_LOCK":         capability.CAP_IPC_LOCK,
}

var nameByCap = func() map[capability.Cap]string {
	out := make(map[capability.Cap]string, len(byName))
	for name, c := range byName {
		out[c] = name
	}
	return out
}()

// ParseList parses a comma-separated list of "CAP_XXX" names into a Set, used
// by the "capabilities" property setter to build Cap.UserLimit.
func ParseList(raw string) (Set, error) {
	out := make(Set)
	if raw == "" {
		return out, nil
	}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		out[c] = struct{}{}
	}
	return out, nil
}

// FormatList renders a Set as a sorted comma-separated "CAP_XXX" list, the
// inverse of ParseList.
func FormatList(s Set) string {
	names := make([]string, 0, len(s))
	for c := range s {
		if name, ok := nameByCap[c]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// WantsSysAdmin reports whether s requests CAP_SYS_ADMIN, the one capability
// Start refuses to grant a non-root owner without a memory limit configured.
func WantsSysAdmin(s Set) bool {
	_, ok := s[capability.CAP_SYS_ADMIN]
	return ok
}
