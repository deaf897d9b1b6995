package cgroup

// SetClassID writes net_cls.classid, the handle the net_cls subsystem tags
// outgoing packets with so a tc filter can route them to the right traffic
// class (internal/netiface builds that filter).
func (c Cgroup) SetClassID(classID uint32) error {
	return c.WriteUint("net_cls.classid", uint64(classID))
}
