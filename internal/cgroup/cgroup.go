package cgroup

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/supervisr/core/internal/svcerr"
)

// Cgroup addresses one subsystem's cgroup directory for one container by
// logical path, e.g. /supervisor/web under the memory hierarchy. Addressing
// alone never touches the filesystem.
type Cgroup struct {
	Subsystem Subsystem
	path      string // absolute directory, <root>/<logical path>
}

// Of addresses a cgroup without creating it.
func (s *Set) Of(sub Subsystem, name string) Cgroup {
	return Cgroup{Subsystem: sub, path: cgroupPath(s.roots[sub], name)}
}

// Path returns the absolute cgroup directory.
func (c Cgroup) Path() string { return c.path }

const cgroupProcsFile = "cgroup.procs"
const tasksFile = "tasks"
const filePerm = 0o644

// Create makes the cgroup directory. It is idempotent on existence (an
// already-present directory is success) and fails with InvalidState if the
// parent is missing.
func (c Cgroup) Create() error {
	if err := os.Mkdir(c.path, 0o755); err != nil {
		if os.IsExist(err) {
			return nil
		}
		if os.IsNotExist(err) {
			return svcerr.New(svcerr.InvalidState, "parent cgroup missing for %s", c.path)
		}
		return svcerr.Wrap(err, "create cgroup %s", c.path)
	}
	return nil
}

// Remove deletes the cgroup directory; idempotent on nonexistence.
func (c Cgroup) Remove() error {
	if err := os.Remove(c.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return svcerr.Wrap(err, "remove cgroup %s", c.path)
	}
	return nil
}

// Attach adds pid to the cgroup.
func (c Cgroup) Attach(pid int) error {
	return c.WriteUint(cgroupProcsFile, uint64(pid))
}

// GetTasks enumerates every thread id currently in the cgroup.
func (c Cgroup) GetTasks() ([]int, error) {
	return readPidFile(filepath.Join(c.path, tasksFile))
}

// GetProcs enumerates every process id currently in the cgroup.
func (c Cgroup) GetProcs() ([]int, error) {
	return readPidFile(filepath.Join(c.path, cgroupProcsFile))
}

func readPidFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, svcerr.Wrap(err, "read %s", path)
	}
	defer f.Close()
	var out []int
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		out = append(out, pid)
	}
	return out, s.Err()
}

// IsEmpty reports whether the cgroup currently holds no processes.
func (c Cgroup) IsEmpty() (bool, error) {
	procs, err := c.GetProcs()
	if err != nil {
		return false, err
	}
	return len(procs) == 0, nil
}

// KillAll sends signal to every pid currently in the cgroup. Not guaranteed
// to empty the cgroup in one pass (forking processes can race); callers
// re-invoke until IsEmpty.
func (c Cgroup) KillAll(signal syscall.Signal) error {
	procs, err := c.GetProcs()
	if err != nil {
		return err
	}
	var lastErr error
	for _, pid := range procs {
		if err := syscall.Kill(pid, signal); err != nil && err != syscall.ESRCH {
			lastErr = err
		}
	}
	return lastErr
}

// Get reads a raw text knob.
func (c Cgroup) Get(knob string) (string, error) {
	b, err := os.ReadFile(filepath.Join(c.path, knob))
	if err != nil {
		return "", svcerr.Wrap(err, "read knob %s", knob)
	}
	return strings.TrimSpace(string(b)), nil
}

// Set writes a raw text knob.
func (c Cgroup) Set(knob, value string) error {
	if err := os.WriteFile(filepath.Join(c.path, knob), []byte(value), filePerm); err != nil {
		return svcerr.FromKnobWrite(knob, err)
	}
	return nil
}

// ReadUint reads a knob as an unsigned integer.
func (c Cgroup) ReadUint(knob string) (uint64, error) {
	s, err := c.Get(knob)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, svcerr.New(svcerr.InvalidData, "knob %s: not a uint: %q", knob, s)
	}
	return v, nil
}

// WriteUint writes a knob as an unsigned integer.
func (c Cgroup) WriteUint(knob string, v uint64) error {
	return c.Set(knob, strconv.FormatUint(v, 10))
}

// KnobExists reports whether the given knob file is present, used by feature
// detection and by dynamic-property application to skip unsupported knobs
// gracefully.
func (c Cgroup) KnobExists(knob string) bool {
	_, err := os.Stat(filepath.Join(c.path, knob))
	return err == nil
}
