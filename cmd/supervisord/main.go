// Command supervisord is the container supervision daemon: a subreaper
// master process that re-execs itself as a long-lived slave holding the
// cgroup/container/holder/event-loop core, plus the launcher's own stage2
// re-exec entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/config"
	"github.com/supervisr/core/internal/container"
	"github.com/supervisr/core/internal/eventloop"
	"github.com/supervisr/core/internal/holder"
	"github.com/supervisr/core/internal/kv"
	"github.com/supervisr/core/internal/launcher"
	"github.com/supervisr/core/internal/netiface"
	"github.com/supervisr/core/internal/obs"
	"github.com/supervisr/core/internal/reaper"
	"github.com/supervisr/core/internal/volume"
)

func main() {
	// Both re-exec contracts are checked before any flag parsing or
	// daemon setup: argv[1] picks the process's entire role.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case launcher.ReexecSentinel:
			if err := launcher.RunStage2(); err != nil {
				fmt.Fprintln(os.Stderr, "stage2:", err)
				os.Exit(1)
			}
			return
		case reaper.SlaveSentinel:
			runSlave()
			return
		}
	}
	runMaster()
}

func runMaster() {
	configPath := flag.String("config", "", "path to daemon config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log, err := obs.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	slaveArgs := []string{reaper.SlaveSentinel}
	if *configPath != "" {
		slaveArgs = append(slaveArgs, "-config", *configPath)
	}
	master := reaper.NewMaster(slaveArgs, log)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sig
		cancel()
	}()
	defer signal.Stop(sig)

	if err := master.Run(ctx); err != nil {
		log.Sugar().Errorw("master exited", "error", err)
		os.Exit(1)
	}
}

func runSlave() {
	fs := flag.NewFlagSet(reaper.SlaveSentinel, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to daemon config file")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log, err := obs.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	slave, err := reaper.NewSlaveFromInheritedFDs(log)
	if err != nil {
		log.Sugar().Fatalw("set up slave", "error", err)
	}

	cgroups, err := cgroup.NewSet(cfg.CgroupRoot)
	if err != nil {
		log.Sugar().Fatalw("open cgroup hierarchy", "error", err, "root", cfg.CgroupRoot)
	}

	store, err := kv.NewStore(cfg.KVRoot)
	if err != nil {
		log.Sugar().Fatalw("open kv store", "error", err, "root", cfg.KVRoot)
	}

	loop, err := eventloop.New(log)
	if err != nil {
		log.Sugar().Fatalw("open event loop", "error", err)
	}
	defer loop.Close()

	deps := &container.Deps{
		Cgroups:     cgroups,
		Volumes:     volume.Unimplemented(),
		NetAttach:   func() netiface.Handle { return netiface.Unimplemented() },
		Launch:      launcher.Launch,
		Scheduler:   loop,
		Store:       store,
		WorkDirRoot: "/run/supervisr/work",

		DefaultAgingTime:    cfg.DefaultAgingTime,
		DefaultRespawnDelay: cfg.DefaultRespawnDelay,
	}

	h := holder.New(deps, log)
	if err := h.RestoreFromStorage(); err != nil {
		log.Sugar().Errorw("restore containers from storage", "error", err)
	}

	dispatcher := eventloop.NewDispatcher(loop, h, log)
	if err := slave.Bind(loop, dispatcher); err != nil {
		log.Sugar().Fatalw("bind reaper event pipe", "error", err)
	}
	dispatcher.StartRotateLogs(cfg.RotateLogsInterval)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sig
		cancel()
	}()
	defer signal.Stop(sig)

	log.Sugar().Infow("supervisor slave ready", "cgroup_root", cfg.CgroupRoot, "kv_root", cfg.KVRoot)
	if err := loop.Run(ctx); err != nil {
		log.Sugar().Errorw("event loop exited", "error", err)
		os.Exit(1)
	}
}
