package launcher

import (
	"bytes"
	"encoding/gob"
	"os"
	"syscall"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/svcerr"
	"github.com/supervisr/core/pkg/unixsocket"
)

// syncFD is the fixed descriptor the staged child finds its sync socket on;
// fd 0/1/2 are the container's std streams, so the socket always lands at 3.
// This is the launcher's own handshake channel, unrelated to the reaper's
// event-pipe descriptors.
const syncFD = 3

// firstNSFD is where the snapshot of namespace fds to join begins, one per
// entry of namespaceKinds, present only when the container does not isolate.
const firstNSFD = 4

// RunStage2 is the entrypoint run after the self re-exec, inside the freshly
// cloned (and, for isolated containers, pid/mnt/ipc/uts-namespaced) process.
// It never returns on success: the last step is execve into the container's
// command.
func RunStage2() error {
	sock, err := unixsocket.NewSocket(syncFD)
	if err != nil {
		return svcerr.Wrap(err, "open stage2 sync socket")
	}

	if _, _, err := recvSync(sock); err != nil {
		failStage(sock, err)
		return err
	}

	payload, err := recvStage2Payload(sock)
	if err != nil {
		failStage(sock, err)
		return err
	}

	if payload.JoinNS {
		if err := joinNamespaces(); err != nil {
			failStage(sock, err)
			return err
		}
	} else {
		if payload.Hostname != "" {
			if err := unix.Sethostname([]byte(payload.Hostname)); err != nil {
				err = svcerr.Wrap(err, "sethostname")
				failStage(sock, err)
				return err
			}
		}
	}

	if err := sendSync(sock, syncMsg{Stage: stageNamespaceReady}); err != nil {
		return err
	}

	if payload.Root != "" {
		if err := buildMountTree(payload.Root, payload.Binds, payload.ResolvConf); err != nil {
			failStage(sock, err)
			return err
		}
	}
	unix.Umask(int(payload.Umask))

	if err := dropBoundingSet(payload.CapLimit); err != nil {
		failStage(sock, err)
		return err
	}

	if err := sendSync(sock, syncMsg{Stage: stageMountReady}); err != nil {
		return err
	}

	cwd := payload.Cwd
	if cwd == "" {
		cwd = "/"
	}
	if err := unix.Chdir(cwd); err != nil {
		err = svcerr.Wrap(err, "chdir %s", cwd)
		failStage(sock, err)
		return err
	}

	env := buildEnv(payload.Name, payload.Hostname, cwd, payload.Env)
	vpid := os.Getpid()
	if err := sendSync(sock, syncMsg{Stage: stageExecReady, VPid: vpid}); err != nil {
		return err
	}
	sock.Close()

	argv := []string{"/bin/sh", "-c", payload.Command}
	return syscall.Exec(argv[0], argv, env)
}

func recvStage2Payload(sock *unixsocket.Socket) (*stage2Payload, error) {
	b := make([]byte, 64*1024)
	n, _, err := sock.RecvMsg(b)
	if err != nil {
		return nil, svcerr.Wrap(err, "recv stage2 payload")
	}
	var p stage2Payload
	if err := gob.NewDecoder(bytes.NewReader(b[:n])).Decode(&p); err != nil {
		return nil, svcerr.Wrap(err, "decode stage2 payload")
	}
	return &p, nil
}

// joinNamespaces setns()'s into the namespace fds the parent passed at
// firstNSFD.., in namespaceKinds order, for non-isolated containers.
func joinNamespaces() error {
	for i, kind := range namespaceKinds {
		fd := firstNSFD + i
		if err := unix.Setns(fd, 0); err != nil {
			return svcerr.Wrap(err, "setns %s", kind)
		}
		unix.Close(fd)
	}
	return nil
}

// dropBoundingSet clamps the process's effective/permitted/inheritable and
// bounding sets down to limit, dropping everything exec alone cannot
// restore; ambient capabilities are already applied by the parent's
// SysProcAttr.AmbientCaps at clone time and are deliberately left untouched
// here (clearing CAPS would wipe them back out).
func dropBoundingSet(limit []uint32) error {
	c, err := capability.NewPid2(0)
	if err != nil {
		return svcerr.Wrap(err, "load capabilities")
	}
	if err := c.Load(); err != nil {
		return svcerr.Wrap(err, "load capabilities")
	}
	c.Clear(capability.CAPS | capability.BOUNDS)
	for _, v := range limit {
		cap := capability.Cap(v)
		c.Set(capability.CAPS|capability.BOUNDING, cap)
	}
	if err := c.Apply(capability.CAPS | capability.BOUNDS); err != nil {
		return svcerr.Wrap(err, "apply bounding capability set")
	}
	return nil
}
