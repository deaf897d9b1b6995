package launcher

import (
	"golang.org/x/sys/unix"
)

// ExitStatus rewrites a wait4 status into the exit code the container
// entity records: a normal exit keeps its code, a fatal signal is reported
// as 128+signal (the standard shell convention), matching what the parent
// process observes when polling the reaper for a finished task.
func ExitStatus(ws unix.WaitStatus) (code int, oomCandidate bool) {
	switch {
	case ws.Exited():
		return ws.ExitStatus(), false
	case ws.Signaled():
		sig := ws.Signal()
		return 128 + int(sig), sig == unix.SIGKILL
	default:
		return -1, false
	}
}
