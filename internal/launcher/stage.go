package launcher

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/svcerr"
	"github.com/supervisr/core/pkg/unixsocket"
)

// ReexecSentinel is argv[0] the supervisor daemon recognizes as "this is the
// staged child, not a fresh invocation": the launcher re-execs itself to get
// a clean Go runtime inside the new namespaces before running the
// container's actual command, the same trick runc-style launchers use since
// Go cannot safely continue running after a bare clone().
const ReexecSentinel = "__supervisr_stage2__"

// cloneFlagsFor picks which namespaces a fresh clone() creates: isolated
// containers get their own pid+mnt+ipc+uts (no new network namespace is
// created in either case); non-isolated containers join the parent's by
// setns() in stage2 instead, so Cloneflags stays at the bare
// minimum (just CLONE_NEWNS so mount changes never leak to the host).
func cloneFlagsFor(spec *Spec) uintptr {
	if !spec.Isolate {
		return unix.CLONE_NEWNS
	}
	return unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS
}

// Launch forks, isolates and execs one container's command, and blocks until
// the staged handshake reports either success (with real/virtual pids) or a
// fatal error from any stage.
func Launch(ctx context.Context, spec *Spec) (*Result, error) {
	parentSock, childSock, err := newSyncPair()
	if err != nil {
		return nil, err
	}
	defer parentSock.Close()

	var nsSnap *nsSnapshot
	if !spec.Isolate {
		joinPid := spec.ParentNSPid
		if joinPid == 0 {
			joinPid = os.Getpid()
		}
		nsSnap, err = snapshotNamespaces(joinPid)
		if err != nil {
			childSock.Close()
			return nil, err
		}
		defer nsSnap.Close()
	}

	self, err := os.Executable()
	if err != nil {
		childSock.Close()
		return nil, svcerr.Wrap(err, "resolve supervisor binary path")
	}

	childFile := dupSocketFile(childSock)

	cmd := exec.Command(self, ReexecSentinel)
	cmd.Dir = "/"
	cmd.Stdin = stdFile(spec.Stdin)
	cmd.Stdout = stdFile(spec.Stdout)
	cmd.Stderr = stdFile(spec.Stderr)
	cmd.ExtraFiles = []*os.File{childFile}
	if nsSnap != nil {
		for _, kind := range namespaceKinds {
			cmd.ExtraFiles = append(cmd.ExtraFiles, nsSnap.fds[kind])
		}
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: cloneFlagsFor(spec),
		Credential: &spec.Credential,
	}
	for _, c := range spec.CapAmbient {
		cmd.SysProcAttr.AmbientCaps = append(cmd.SysProcAttr.AmbientCaps, uintptr(c))
	}

	startErr := cmd.Start()
	childSock.Close()
	childFile.Close()
	if startErr != nil {
		return nil, svcerr.Wrap(startErr, "start staged child")
	}

	if spec.AttachCgroups != nil {
		if err := spec.AttachCgroups(cmd.Process.Pid); err != nil {
			_ = cmd.Process.Kill()
			return nil, svcerr.Wrap(err, "attach launched pid to cgroups")
		}
	}

	if err := sendSync(parentSock, syncMsg{Stage: stageNamespaceReady, RealPid: cmd.Process.Pid}); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	if err := sendStage2Spec(parentSock, spec); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	result, err := waitHandshake(parentSock, cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	return result, nil
}

func waitHandshake(parentSock *unixsocket.Socket, realPid int) (*Result, error) {
	for {
		msg, _, err := recvSync(parentSock)
		if err != nil {
			return nil, err
		}
		switch msg.Stage {
		case stageFailed:
			return nil, svcerr.New("InvalidState", "container launch failed: %s", msg.ErrText)
		case stageExecReady:
			return &Result{RealPid: realPid, VPid: msg.VPid}, nil
		}
	}
}

type stage2Payload struct {
	Name         string
	Cwd          string
	Root         string
	RootReadOnly bool
	Umask        uint32
	Env          []string
	Hostname     string
	Binds        []BindMount
	ResolvConf   string
	Command      string
	OSMode       bool
	Isolate      bool
	JoinNS       bool
	CapLimit     []uint32
}

func sendStage2Spec(s *unixsocket.Socket, spec *Spec) error {
	p := stage2Payload{
		Name:         spec.Name,
		Cwd:          spec.Cwd,
		Root:         spec.Root,
		RootReadOnly: spec.RootReadOnly,
		Umask:        spec.Umask,
		Env:          spec.Env,
		Hostname:     spec.Hostname,
		Binds:        spec.Binds,
		ResolvConf:   spec.ResolvConf,
		Command:      spec.Command,
		OSMode:       spec.OSMode,
		Isolate:      spec.Isolate,
		JoinNS:       !spec.Isolate,
	}
	for _, c := range spec.CapLimit {
		p.CapLimit = append(p.CapLimit, uint32(c))
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return svcerr.Wrap(err, "encode stage2 spec")
	}
	return s.SendMsg(buf.Bytes(), unixsocket.Msg{})
}

func stdFile(fd uintptr) *os.File {
	if fd == 0 {
		return nil
	}
	return os.NewFile(fd, "std")
}

// dupSocketFile duplicates the sync socket's fd into a non-close-on-exec
// *os.File suitable for exec.Cmd.ExtraFiles; the duplicate is independent of
// the original, which the caller keeps closing on its own schedule.
func dupSocketFile(s *unixsocket.Socket) *os.File {
	f, err := s.File()
	if err != nil {
		panic(fmt.Sprintf("sync socket has no backing fd: %v", err))
	}
	return f
}
