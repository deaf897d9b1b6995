// Package config loads the daemon's own bootstrap configuration: cgroup mount
// roots, the kv persistence root, the master/slave pipe descriptors, and the
// aging/respawn tunables. This is the daemon's own config, not the RPC/CLI
// front-end config, which stays out of scope.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon bootstrap configuration.
type Config struct {
	// CgroupRoot is the root under which per-subsystem hierarchies are mounted,
	// e.g. /sys/fs/cgroup.
	CgroupRoot string `yaml:"cgroup_root"`

	// KVRoot is the tmpfs directory holding one file per container id.
	KVRoot string `yaml:"kv_root"`

	// EventPipeFD and AckPipeFD are the fixed descriptors the master/slave
	// split communicates over.
	EventPipeFD int `yaml:"event_pipe_fd"`
	AckPipeFD   int `yaml:"ack_pipe_fd"`

	// DefaultAgingTime is used when a container does not set aging_time.
	DefaultAgingTime time.Duration `yaml:"default_aging_time"`

	// DefaultRespawnDelay is the delay before a Respawn event fires.
	DefaultRespawnDelay time.Duration `yaml:"default_respawn_delay"`

	// RotateLogsInterval is the period of the periodic RotateLogs event.
	RotateLogsInterval time.Duration `yaml:"rotate_logs_interval"`

	// Debug enables development logging.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		CgroupRoot:          "/sys/fs/cgroup",
		KVRoot:              "/run/supervisr/kv",
		EventPipeFD:         128,
		AckPipeFD:           129,
		DefaultAgingTime:    10 * time.Second,
		DefaultRespawnDelay: time.Second,
		RotateLogsInterval:  time.Minute,
	}
}

// Load reads and merges a YAML config file over the defaults. A missing file
// is not an error; it yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
