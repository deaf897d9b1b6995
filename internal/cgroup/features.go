package cgroup

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Features holds the capability predicates probed once at startup by reading
// the root cgroup for the relevant knobs.
type Features struct {
	Guarantee        bool // memory.soft_limit_in_bytes
	IOLimit          bool // blkio.throttle.read_bps_device
	Swap             bool // memory.memsw.limit_in_bytes
	AnonLimit        bool // memory.anon.limit_in_bytes
	RechargeOnPgfault bool // memory.recharge_on_pgfault
	IOPolicy         bool // blkio.weight
}

func detectFeatures(s *Set) (Features, error) {
	root := s.Group("")
	return Features{
		Guarantee:         root.Memory.KnobExists("memory.soft_limit_in_bytes"),
		IOLimit:           root.BlkIO.KnobExists("blkio.throttle.read_bps_device"),
		Swap:              root.Memory.KnobExists("memory.memsw.limit_in_bytes"),
		AnonLimit:         root.Memory.KnobExists("memory.anon.limit_in_bytes"),
		RechargeOnPgfault: root.Memory.KnobExists("memory.recharge_on_pgfault"),
		IOPolicy:          root.BlkIO.KnobExists("blkio.weight"),
	}, nil
}

// CgroupInfo is one line of /proc/cgroups: subsystem name, hierarchy id,
// number of cgroups, and whether the subsystem is enabled.
type CgroupInfo struct {
	Hierarchy  int
	NumCgroups int
	Enabled    bool
}

const procCgroupsPath = "/proc/cgroups"

// ReadProcCgroups reads /proc/cgroups, reporting which subsystems the
// running kernel has compiled in and enabled.
func ReadProcCgroups() (map[string]CgroupInfo, error) {
	f, err := os.Open(procCgroupsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]CgroupInfo)
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		hierarchy, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, err
		}
		num, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, err
		}
		out[parts[0]] = CgroupInfo{Hierarchy: hierarchy, NumCgroups: num, Enabled: parts[3] != "0"}
	}
	return out, s.Err()
}
