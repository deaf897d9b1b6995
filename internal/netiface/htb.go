package netiface

import (
	"fmt"
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/supervisr/core/internal/svcerr"
)

// htbHandle is the concrete Handle implementation built on an htb
// (Hierarchical Token Bucket) qdisc/class pair via vishvananda/netlink,
// grounded on the network-strategy shape of docker-archive-libcontainer's
// network package and on the netlink stack the rest of the example pack
// (kubernetes) already depends on.
type htbHandle struct {
	mu      sync.Mutex // nested under the owning container's lock
	link    netlink.Link
	classID uint32
	parent  uint32
	attached bool
}

// NewHTBHandle returns an unattached Handle for the given host link name.
// parentHandle is the htb qdisc's root handle (e.g. 0x1:0) that must already
// exist on the link — constructing the root qdisc itself is the host network
// setup's job, out of this core's scope.
func NewHTBHandle(linkName string, parentHandle uint32) (Handle, error) {
	link, err := netlink.LinkByName(linkName)
	if err != nil {
		return nil, svcerr.Wrap(err, "lookup host link %s", linkName)
	}
	return &htbHandle{link: link, parent: parentHandle}, nil
}

func classIDHandle(classID uint32) uint32 {
	return netlink.MakeHandle(1, uint16(classID))
}

// Attach creates an htb class under the root qdisc, with net_cls.classid
// matching classID so packets from the container's cgroup are routed here.
func (h *htbHandle) Attach(_ string, classID uint32, limits Limits) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	attrs := netlink.ClassAttrs{
		LinkIndex: h.link.Attrs().Index,
		Parent:    h.parent,
		Handle:    classIDHandle(classID),
	}
	htbAttrs := netlink.HtbClassAttrs{
		Rate:    limits.RateBps,
		Ceil:    limits.CeilBps,
		Prio:    limits.Priority,
	}
	class := netlink.NewHtbClass(attrs, htbAttrs)
	if err := netlink.ClassAdd(class); err != nil {
		return svcerr.Wrap(err, "add htb class %x on %s", classID, h.link.Attrs().Name)
	}
	h.classID = classID
	h.attached = true
	return nil
}

// Update rewrites the class's rate/ceil/priority in place.
func (h *htbHandle) Update(limits Limits) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.attached {
		return svcerr.New(svcerr.InvalidState, "traffic class not attached")
	}
	attrs := netlink.ClassAttrs{
		LinkIndex: h.link.Attrs().Index,
		Parent:    h.parent,
		Handle:    classIDHandle(h.classID),
	}
	htbAttrs := netlink.HtbClassAttrs{
		Rate: limits.RateBps,
		Ceil: limits.CeilBps,
		Prio: limits.Priority,
	}
	class := netlink.NewHtbClass(attrs, htbAttrs)
	if err := netlink.ClassChange(class); err != nil {
		return svcerr.Wrap(err, "update htb class %x", h.classID)
	}
	return nil
}

// Detach removes the htb class, releasing the network resource.
func (h *htbHandle) Detach() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.attached {
		return nil
	}
	attrs := netlink.ClassAttrs{
		LinkIndex: h.link.Attrs().Index,
		Parent:    h.parent,
		Handle:    classIDHandle(h.classID),
	}
	class := netlink.NewHtbClass(attrs, netlink.HtbClassAttrs{})
	if err := netlink.ClassDel(class); err != nil {
		return svcerr.Wrap(err, "remove htb class %x", h.classID)
	}
	h.attached = false
	return nil
}

func (h *htbHandle) String() string {
	return fmt.Sprintf("htb(%s, class=%x)", h.link.Attrs().Name, h.classID)
}
