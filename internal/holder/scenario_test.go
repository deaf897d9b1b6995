package holder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/eventloop"
	"github.com/supervisr/core/internal/kv"
	"github.com/supervisr/core/internal/launcher"
	"github.com/supervisr/core/internal/netiface"
	"github.com/supervisr/core/internal/svcerr"
	"github.com/supervisr/core/internal/volume"
)

// These seven tests follow the narrative scenarios used to validate the
// supervision core end to end: create/start/observe, an OOM kill, a Meta
// grouping container with a child, pause/resume refusing repeats, restart
// recovery across a fresh index over the same store, respawn budget
// exhaustion, and a capability refusal. Every container here runs through
// the real lifecycle methods against a real *cgroup.Set rooted at a temp
// directory: internal/cgroup never touches a live kernel cgroup mount, it
// only reads and writes plain files, so a temp directory pre-seeded with
// the handful of files a real cgroupfs mount would auto-populate (per-
// subsystem directories, freezer.state, memory.oom_control,
// cgroup.event_control) stands in for it without root or namespaces.
// Tasks are real short-lived processes launched through os/exec rather
// than mocked, since Terminate signals and waits on a real pid.

func prepareCgroupFakes(t *testing.T, cgroupRoot string, names ...string) {
	t.Helper()
	for _, name := range names {
		for _, sub := range cgroup.All {
			dir := filepath.Join(cgroupRoot, string(sub), name)
			require.NoError(t, os.MkdirAll(dir, 0o755))
		}
		freezerDir := filepath.Join(cgroupRoot, string(cgroup.Freezer), name)
		require.NoError(t, os.WriteFile(filepath.Join(freezerDir, "freezer.state"), []byte("THAWED"), 0o644))

		memDir := filepath.Join(cgroupRoot, string(cgroup.Memory), name)
		require.NoError(t, os.WriteFile(filepath.Join(memDir, "memory.oom_control"), nil, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(memDir, "cgroup.event_control"), nil, 0o644))
	}
}

// fakeLaunch stands in for the real launcher: it forks a real process via
// os/exec instead of the namespace/cgroup fork-exec pipeline, then runs the
// same AttachCgroups callback a real launch would, so the container's
// cgroup.procs files are populated exactly as production code expects.
func fakeLaunch(_ context.Context, spec *launcher.Spec) (*launcher.Result, error) {
	fields := strings.Fields(spec.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("fakeLaunch: empty command")
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	if spec.AttachCgroups != nil {
		if err := spec.AttachCgroups(cmd.Process.Pid); err != nil {
			return nil, err
		}
	}
	return &launcher.Result{RealPid: cmd.Process.Pid, VPid: cmd.Process.Pid}, nil
}

// newScenarioHolder builds a Holder wired against a real cgroup.Set, kv
// store and eventloop.Loop, with the reserved supervisor root already
// brought up to Meta so top-level containers can Start under it.
func newScenarioHolder(t *testing.T) (*Holder, string) {
	t.Helper()

	cgroupRoot := t.TempDir()
	for _, sub := range cgroup.All {
		require.NoError(t, os.MkdirAll(filepath.Join(cgroupRoot, string(sub)), 0o755))
	}
	set, err := cgroup.NewSet(cgroupRoot)
	require.NoError(t, err)

	store, err := kv.NewStore(t.TempDir())
	require.NoError(t, err)

	loop, err := eventloop.New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { loop.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)

	deps := &container.Deps{
		Cgroups:             set,
		Volumes:             volume.Unimplemented(),
		NetAttach:           netiface.Unimplemented,
		Launch:              fakeLaunch,
		Scheduler:           loop,
		Store:               store,
		WorkDirRoot:         t.TempDir(),
		DefaultRespawnDelay: 5 * time.Millisecond,
	}

	h := New(deps, zap.NewNop())
	prepareCgroupFakes(t, cgroupRoot, SupervisorRootName)
	require.NoError(t, h.Start(context.Background(), SupervisorRootName, true))

	return h, cgroupRoot
}

func getState(t *testing.T, h *Holder, name string) container.State {
	t.Helper()
	c, err := h.Get(name)
	require.NoError(t, err)
	c.Lock()
	defer c.Unlock()
	return c.State
}

func getProp(t *testing.T, h *Holder, name, prop string) string {
	t.Helper()
	c, err := h.Get(name)
	require.NoError(t, err)
	c.Lock()
	defer c.Unlock()
	v, err := c.GetProperty(prop)
	require.NoError(t, err)
	return v
}

func taskPid(t *testing.T, h *Holder, name string) int {
	t.Helper()
	c, err := h.Get(name)
	require.NoError(t, err)
	c.Lock()
	defer c.Unlock()
	return c.RT.TaskPid
}

func waitExited(t *testing.T, pid int) {
	t.Helper()
	require.Eventually(t, func() bool {
		var ws syscall.WaitStatus
		wpid, _ := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
		return wpid == pid
	}, 2*time.Second, time.Millisecond, "pid %d never exited", pid)
}

func TestScenarioNormalExitReportsZeroStatus(t *testing.T) {
	h, cgroupRoot := newScenarioHolder(t)

	_, err := h.Create("web", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("web", "command", "/bin/sleep 0.05"))
	require.NoError(t, h.SetProperty("web", "memory_limit", "104857600"))
	prepareCgroupFakes(t, cgroupRoot, "web")

	require.NoError(t, h.Start(context.Background(), "web", false))
	assert.Equal(t, container.Running, getState(t, h, "web"))

	pid := taskPid(t, h, "web")
	require.NotZero(t, pid)
	waitExited(t, pid)

	require.NoError(t, h.Reap("web", 0, false))
	assert.Equal(t, container.Dead, getState(t, h, "web"))
	assert.Equal(t, "0", getProp(t, h, "web", "exit_status"))
}

func TestScenarioOOMKillRecordsSignalAndFlag(t *testing.T) {
	h, cgroupRoot := newScenarioHolder(t)

	_, err := h.Create("oom", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("oom", "command", "/bin/sleep 2"))
	require.NoError(t, h.SetProperty("oom", "memory_limit", "10485760"))
	prepareCgroupFakes(t, cgroupRoot, "oom")

	require.NoError(t, h.Start(context.Background(), "oom", false))
	pid := taskPid(t, h, "oom")
	require.NotZero(t, pid)

	// A real OOM kill arrives as SIGKILL against the task and a readable
	// eventfd; here the kernel OOM killer is simulated directly since
	// nothing short of a live kernel memory cgroup can drive the eventfd.
	require.NoError(t, syscall.Kill(pid, syscall.SIGKILL))
	waitExited(t, pid)

	require.NoError(t, h.Exit("oom", int(syscall.SIGKILL), true))

	assert.Equal(t, container.Dead, getState(t, h, "oom"))
	assert.Equal(t, "true", getProp(t, h, "oom", "oom_killed"))
	assert.Equal(t, strconv.Itoa(int(syscall.SIGKILL)), getProp(t, h, "oom", "exit_status"))
}

func TestScenarioMetaParentBlocksDestroyUntilChildGone(t *testing.T) {
	h, cgroupRoot := newScenarioHolder(t)

	_, err := h.Create("parent", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("parent", "isolate", "true"))
	prepareCgroupFakes(t, cgroupRoot, "parent")
	require.NoError(t, h.Start(context.Background(), "parent", true))
	assert.Equal(t, container.Meta, getState(t, h, "parent"))

	_, err = h.Create("parent/child", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("parent/child", "command", "/bin/true"))
	prepareCgroupFakes(t, cgroupRoot, "parent/child")
	require.NoError(t, h.Start(context.Background(), "parent/child", false))

	pid := taskPid(t, h, "parent/child")
	require.NotZero(t, pid)
	waitExited(t, pid)
	require.NoError(t, h.Reap("parent/child", 0, false))

	assert.Equal(t, container.Meta, getState(t, h, "parent"))
	assert.Equal(t, container.Dead, getState(t, h, "parent/child"))

	err = h.Destroy("parent")
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))

	require.NoError(t, h.Destroy("parent/child"))
	require.NoError(t, h.Destroy("parent"))
}

func TestScenarioPauseResumeRefusesRepeats(t *testing.T) {
	h, cgroupRoot := newScenarioHolder(t)

	_, err := h.Create("a", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("a", "command", "/bin/sleep 5"))
	prepareCgroupFakes(t, cgroupRoot, "a")
	require.NoError(t, h.Start(context.Background(), "a", false))

	require.NoError(t, h.Pause("a"))
	assert.Equal(t, container.Paused, getState(t, h, "a"))

	err = h.Pause("a")
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))

	require.NoError(t, h.Resume("a"))
	assert.Equal(t, container.Running, getState(t, h, "a"))

	err = h.Resume("a")
	assert.True(t, svcerr.Is(err, svcerr.InvalidState))

	pid := taskPid(t, h, "a")
	require.NoError(t, syscall.Kill(pid, syscall.SIGKILL))
	waitExited(t, pid)
	require.NoError(t, h.Reap("a", int(syscall.SIGKILL), false))
}

func TestScenarioRestartRecoveryPreservesStateAndRootPid(t *testing.T) {
	h, cgroupRoot := newScenarioHolder(t)

	_, err := h.Create("r", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("r", "command", "/bin/sleep 5"))
	prepareCgroupFakes(t, cgroupRoot, "r")
	require.NoError(t, h.Start(context.Background(), "r", false))

	originalPid := taskPid(t, h, "r")
	require.NotZero(t, originalPid)

	// Simulate the slave being SIGKILLed and the master respawning a fresh
	// one by rebuilding the index from the same durable store: a restarted
	// slave's first act is exactly this, a RestoreFromStorage over whatever
	// was last persisted.
	h2 := New(h.deps, zap.NewNop())
	require.NoError(t, h2.RestoreFromStorage())

	assert.Equal(t, container.Running, getState(t, h2, "r"))
	assert.Equal(t, strconv.Itoa(originalPid), getProp(t, h2, "r", "root_pid"))

	require.NoError(t, syscall.Kill(originalPid, syscall.SIGKILL))
	waitExited(t, originalPid)
	require.NoError(t, h.Reap("r", int(syscall.SIGKILL), false))
}

func TestScenarioRespawnExhaustsBudget(t *testing.T) {
	h, cgroupRoot := newScenarioHolder(t)

	_, err := h.Create("rr", container.Credentials{})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("rr", "command", "/bin/false"))
	require.NoError(t, h.SetProperty("rr", "respawn", "true"))
	require.NoError(t, h.SetProperty("rr", "max_respawns", "3"))
	prepareCgroupFakes(t, cgroupRoot, "rr")

	require.NoError(t, h.Start(context.Background(), "rr", false))

	// Reap's releaseResources removes the per-container cgroup directories
	// and stub files prepareCgroupFakes wrote; a respawn re-runs Start,
	// which needs them again, so they are recreated right before each
	// scheduled respawn fires.
	for round := 0; round < 4; round++ {
		pid := taskPid(t, h, "rr")
		require.NotZero(t, pid, "round %d: no task pid", round)
		waitExited(t, pid)

		if round < 3 {
			prepareCgroupFakes(t, cgroupRoot, "rr")
		}
		require.NoError(t, h.Reap("rr", 1, false))

		if round < 3 {
			require.Eventually(t, func() bool {
				c, err := h.Get("rr")
				require.NoError(t, err)
				c.Lock()
				defer c.Unlock()
				return c.State == container.Running && c.RT.TaskPid != 0 && c.RT.TaskPid != pid
			}, time.Second, time.Millisecond, "round %d: respawn never landed", round)
		}
	}

	assert.Equal(t, container.Dead, getState(t, h, "rr"))
	assert.Equal(t, "3", getProp(t, h, "rr", "respawn_count"))
}

func TestScenarioCapabilityRefusalNeedsMemoryLimit(t *testing.T) {
	h, _ := newScenarioHolder(t)

	_, err := h.Create("cap", container.Credentials{UID: 1000, GID: 1000})
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("cap", "command", "/bin/true"))
	require.NoError(t, h.SetProperty("cap", "capabilities", "CAP_SYS_ADMIN"))

	err = h.Start(context.Background(), "cap", false)
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.Permission))
	assert.Contains(t, err.Error(), "memory limit")
}
