package container

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/svcerr"
)

// OpenOOMEventFD wires up the cgroup v1 OOM notification API: create an
// eventfd, open memory.oom_control, and register the pair through
// cgroup.event_control so the kernel signals the eventfd on every OOM kill.
// The returned fd is handed to the event loop for epoll registration tagged
// EPOLL_EVENT_OOM.
func (c *Container) OpenOOMEventFD() (int, error) {
	oomControlPath, eventControlPath := c.res.cgroups.Memory.Path()+"/memory.oom_control", c.res.cgroups.Memory.Path()+"/cgroup.event_control"

	oomControl, err := os.Open(oomControlPath)
	if err != nil {
		return -1, svcerr.Wrap(err, "open %s", oomControlPath)
	}
	defer oomControl.Close()

	eventControl, err := os.OpenFile(eventControlPath, os.O_WRONLY, 0)
	if err != nil {
		return -1, svcerr.Wrap(err, "open %s", eventControlPath)
	}
	defer eventControl.Close()

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, svcerr.Wrap(err, "eventfd")
	}

	line := fmt.Sprintf("%d %d", efd, oomControl.Fd())
	if _, err := eventControl.WriteString(line); err != nil {
		unix.Close(efd)
		return -1, svcerr.Wrap(err, "register oom eventfd")
	}

	c.res.oomEventFD = efd
	return efd, nil
}

// CloseOOMEventFD closes the registered eventfd, if any; safe to call
// multiple times.
func (c *Container) CloseOOMEventFD() {
	if c.res == nil || c.res.oomEventFD == 0 {
		return
	}
	unix.Close(c.res.oomEventFD)
	c.res.oomEventFD = 0
}
