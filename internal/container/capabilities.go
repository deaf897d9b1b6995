package container

import (
	"github.com/supervisr/core/internal/caps"
	"github.com/supervisr/core/internal/svcerr"
)

// SanitizeCapabilities recomputes Cap.Allowed/Cap.Limit/Cap.Ambient: the
// allowed set derives from (ownerIsRoot, VirtMode) and is clamped to the
// final CapLimit; CapLimit is intersected with every ancestor's CapLimit
// and, if the user set an explicit CapLimit, with that request; CapAmbient
// is finally clamped to CapAllowed ∩ (final CapLimit).
func (c *Container) SanitizeCapabilities() error {
	ownerIsRoot := c.Cred.UID == 0

	if !ownerIsRoot && c.Cap.UserLimit != nil && caps.WantsSysAdmin(*c.Cap.UserLimit) && c.Res.MemoryLimit == 0 {
		return svcerr.New(svcerr.Permission, "capabilities: CAP_SYS_ADMIN requires a memory limit for a non-root owner")
	}

	allowed := caps.PolicyCeiling(c.VirtMode, ownerIsRoot)

	limit := caps.SuidCeiling(c.VirtMode, ownerIsRoot)
	for anc := c.parent; anc != nil; anc = anc.parent {
		limit = caps.Intersect(limit, anc.Cap.Limit)
	}
	if c.Cap.UserLimit != nil {
		limit = caps.Intersect(limit, *c.Cap.UserLimit)
	}

	ambient := caps.Intersect(c.Cap.Ambient, allowed, limit)

	c.Cap.Allowed = caps.Intersect(allowed, limit)
	c.Cap.Limit = limit
	c.Cap.Ambient = ambient
	return nil
}
