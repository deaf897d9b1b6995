package reaper

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/svcerr"
)

// SlaveSentinel is argv[1] the master passes to mark a re-exec as "become
// the slave", distinct from internal/launcher's own ReexecSentinel (which
// marks a container task's namespace-join stage) since the two re-exec
// contracts serve unrelated processes.
const SlaveSentinel = "__supervisr_slave__"

// Master is the subreaper process: it never runs container workloads
// itself, only harvests wait statuses on their behalf and forwards them to
// the slave, which does the actual event dispatch.
type Master struct {
	slaveArgs []string
	log       *zap.Logger

	mu     sync.Mutex
	exited map[int]int  // pid -> status, recorded but not yet acked by the slave
	acked  map[int]bool // pid acked by the slave before SIGCHLD observed it
	cmd    *exec.Cmd
	evtW   *os.File // master's write end of the event pipe
	ackR   *os.File // master's read end of the ack pipe
}

// NewMaster builds a Master that will re-exec the current binary with
// slaveArgs (conventionally including launcher.ReexecSentinel's sibling
// slave sentinel) to produce the slave process.
func NewMaster(slaveArgs []string, log *zap.Logger) *Master {
	return &Master{
		slaveArgs: slaveArgs,
		log:       log,
		exited:    make(map[int]int),
		acked:     make(map[int]bool),
	}
}

// Run installs the subreaper attributes, spawns the slave, and drives the
// master's event loop until ctx is canceled or the slave exits on its own.
func (m *Master) Run(ctx context.Context) error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return svcerr.Wrap(err, "PR_SET_CHILD_SUBREAPER")
	}
	if err := os.WriteFile("/proc/self/oom_score_adj", []byte("-1000"), 0o644); err != nil {
		m.log.Sugar().Warnw("set master oom_score_adj", "error", err)
	}

	if err := m.spawnSlave(); err != nil {
		return err
	}
	defer m.evtW.Close()
	defer m.ackR.Close()

	sigchld := make(chan os.Signal, 4)
	signal.Notify(sigchld, syscall.SIGCHLD)
	defer signal.Stop(sigchld)

	sigterm := make(chan os.Signal, 2)
	signal.Notify(sigterm, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigterm)

	ackDone := make(chan struct{})
	go m.pumpAcks(ackDone)

	for {
		select {
		case <-ctx.Done():
			return m.terminateSlave()
		case sig := <-sigterm:
			m.forwardAndWait(sig)
			return nil
		case <-sigchld:
			if exited, err := m.reapOnce(); err != nil {
				m.log.Sugar().Warnw("reap", "error", err)
			} else if exited {
				return nil
			}
		case <-ackDone:
			return nil
		}
	}
}

// spawnSlave re-execs the current binary with an inherited evt/ack pipe
// pair. ExtraFiles land at fd 3/4 in the child; the slave's own startup
// dup2s them onto the fixed EventPipeFD/AckPipeFD before doing anything
// else, the same "stage via re-exec" contract internal/launcher uses for
// the namespace-join handshake.
func (m *Master) spawnSlave() error {
	evtR, evtW, err := os.Pipe()
	if err != nil {
		return svcerr.Wrap(err, "create event pipe")
	}
	ackR, ackW, err := os.Pipe()
	if err != nil {
		evtR.Close()
		evtW.Close()
		return svcerr.Wrap(err, "create ack pipe")
	}

	cmd := exec.Command(os.Args[0], m.slaveArgs...)
	cmd.ExtraFiles = []*os.File{evtR, ackW}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		evtR.Close()
		evtW.Close()
		ackR.Close()
		ackW.Close()
		return svcerr.Wrap(err, "start slave")
	}
	evtR.Close()
	ackW.Close()

	m.cmd = cmd
	m.evtW = evtW
	m.ackR = ackR

	m.mu.Lock()
	for pid, status := range m.exited {
		_ = WriteExitMsg(m.evtW, pid, status, false)
	}
	m.mu.Unlock()
	return nil
}

// pumpAcks reads acknowledged pids off the ack pipe until it closes,
// reconciling them against exited/acked per the correctness property: every
// terminated child is either recorded in exited or already harvested.
func (m *Master) pumpAcks(done chan<- struct{}) {
	defer close(done)
	for {
		pid, err := ReadAck(m.ackR)
		if err != nil {
			return
		}
		m.mu.Lock()
		if _, ok := m.exited[pid]; ok {
			delete(m.exited, pid)
		} else {
			m.acked[pid] = true
		}
		m.mu.Unlock()
	}
}

// reapOnce drains every currently-zombied descendant via wait4(WNOHANG):
// as subreaper we are the only process that will ever collect these, so
// collecting the status directly (rather than waitid(WNOWAIT) peek, then a
// second deferred waitpid) loses nothing — the exit status is recorded in
// exited before it is forwarded, so a fast-arriving ack can never reference
// a pid the master hasn't recorded yet.
func (m *Master) reapOnce() (slaveExited bool, err error) {
	for {
		var ws unix.WaitStatus
		var ru unix.Rusage
		pid, werr := unix.Wait4(-1, &ws, unix.WNOHANG, &ru)
		if werr == unix.ECHILD || pid == 0 {
			return false, nil
		}
		if werr == unix.EINTR {
			continue
		}
		if werr != nil {
			return false, svcerr.Wrap(werr, "wait4")
		}

		if m.cmd != nil && pid == m.cmd.Process.Pid {
			return true, nil
		}

		status := ws.ExitStatus()
		if ws.Signaled() {
			status = 128 + int(ws.Signal())
		}

		m.mu.Lock()
		if m.acked[pid] {
			delete(m.acked, pid)
			m.mu.Unlock()
			continue
		}
		m.exited[pid] = status
		m.mu.Unlock()

		if m.evtW != nil {
			if err := WriteExitMsg(m.evtW, pid, status, false); err != nil {
				m.log.Sugar().Warnw("forward exit to slave", "pid", pid, "error", err)
			}
		}
	}
}

func (m *Master) forwardAndWait(sig os.Signal) {
	if m.cmd == nil || m.cmd.Process == nil {
		return
	}
	_ = m.cmd.Process.Signal(sig)
	_, _ = m.cmd.Process.Wait()
}

func (m *Master) terminateSlave() error {
	if m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	_ = m.cmd.Process.Signal(syscall.SIGTERM)
	_, err := m.cmd.Process.Wait()
	return err
}
