// Package cgroup provices builder to create cgroup
// under systemd defined mount path (i.e.,sys/fs/cgroup) including v1 and
// v2 implementation.
//
// Available cgroup controller:
//  cpu
//  cpuset
//  cpuacct
//  memory
//  pids
//
// Current not available: devices, freezer, net_cls, blkio, perf_event, net_prio, huge_tlb, rdma
package cgroup
