package container

import (
	"strconv"
	"strings"

	"github.com/supervisr/core/internal/caps"
	"github.com/supervisr/core/internal/cgroup"
	"github.com/supervisr/core/internal/svcerr"
)

// property is one row of the property registry: a name maps to a getter, a
// setter (validates + assigns), a restore-setter (tolerant, used only from
// Load), whether it is dynamically settable on a running container, and the
// dirty-bitset tag it flips.
type property struct {
	Name           string
	Dynamic        bool
	Tag            EProperty
	Get            func(c *Container) string
	Set            func(c *Container, raw string) error
	SetFromRestore func(c *Container, raw string) error
}

var registry = buildRegistry()

func buildRegistry() map[string]*property {
	r := make(map[string]*property)
	add := func(p *property) {
		if p.SetFromRestore == nil {
			p.SetFromRestore = p.Set
		}
		r[p.Name] = p
	}

	add(&property{Name: "command", Tag: PropCommand,
		Get: func(c *Container) string { return c.Command },
		Set: func(c *Container, v string) error { c.Command = v; return nil }})

	add(&property{Name: "cwd", Tag: PropCwd,
		Get: func(c *Container) string { return c.Cwd },
		Set: func(c *Container, v string) error { c.Cwd = v; return nil }})

	add(&property{Name: "root", Tag: PropRoot,
		Get: func(c *Container) string { return c.Root },
		Set: func(c *Container, v string) error { c.Root = v; return nil }})

	add(&property{Name: "user", Tag: PropUser,
		Get: func(c *Container) string { return strconv.Itoa(c.Cred.UID) },
		Set: func(c *Container, v string) error {
			uid, err := strconv.Atoi(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "user: not numeric: %q", v)
			}
			c.Cred.UID = uid
			return nil
		}})

	add(&property{Name: "group", Tag: PropGroup,
		Get: func(c *Container) string { return strconv.Itoa(c.Cred.GID) },
		Set: func(c *Container, v string) error {
			gid, err := strconv.Atoi(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "group: not numeric: %q", v)
			}
			c.Cred.GID = gid
			return nil
		}})

	add(&property{Name: "env", Tag: PropEnv,
		Get: func(c *Container) string { return strings.Join(c.Env, ";") },
		Set: func(c *Container, v string) error {
			if v == "" {
				c.Env = nil
				return nil
			}
			c.Env = strings.Split(v, ";")
			return nil
		}})

	add(&property{Name: "memory_limit", Dynamic: true, Tag: PropMemoryLimit,
		Get: func(c *Container) string { return strconv.FormatUint(c.Res.MemoryLimit, 10) },
		Set: setUint(func(c *Container) *uint64 { return &c.Res.MemoryLimit })})

	add(&property{Name: "memory_guarantee", Dynamic: true, Tag: PropMemoryGuarantee,
		Get: func(c *Container) string { return strconv.FormatUint(c.Res.MemoryGuarantee, 10) },
		Set: setUint(func(c *Container) *uint64 { return &c.Res.MemoryGuarantee })})

	add(&property{Name: "anon_limit", Dynamic: true, Tag: PropAnonLimit,
		Get: func(c *Container) string { return strconv.FormatUint(c.Res.AnonLimit, 10) },
		Set: setUint(func(c *Container) *uint64 { return &c.Res.AnonLimit })})

	add(&property{Name: "dirty_limit", Dynamic: true, Tag: PropDirtyLimit,
		Get: func(c *Container) string { return strconv.FormatUint(c.Res.DirtyLimit, 10) },
		Set: setUint(func(c *Container) *uint64 { return &c.Res.DirtyLimit })})

	add(&property{Name: "recharge_on_pgfault", Dynamic: true, Tag: PropRechargeOnPgfault,
		Get: func(c *Container) string { return strconv.FormatBool(c.Res.RechargeOnPgfault) },
		Set: func(c *Container, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "recharge_on_pgfault: not boolean: %q", v)
			}
			c.Res.RechargeOnPgfault = b
			return nil
		}})

	add(&property{Name: "io_limit", Dynamic: true, Tag: PropIOLimit,
		Get: func(c *Container) string { return strconv.FormatUint(c.Res.IOBpsLimit, 10) },
		Set: setUint(func(c *Container) *uint64 { return &c.Res.IOBpsLimit })})

	add(&property{Name: "io_ops_limit", Dynamic: true, Tag: PropIOOpsLimit,
		Get: func(c *Container) string { return strconv.FormatUint(c.Res.IOOpsLimit, 10) },
		Set: setUint(func(c *Container) *uint64 { return &c.Res.IOOpsLimit })})

	add(&property{Name: "io_policy", Dynamic: true, Tag: PropIOPolicy,
		Get: func(c *Container) string { return string(c.Res.IOPolicy) },
		Set: func(c *Container, v string) error { c.Res.IOPolicy = cgroup.IOPolicy(v); return nil }})

	add(&property{Name: "cpu_policy", Dynamic: true, Tag: PropCPUPolicy,
		Get: func(c *Container) string { return string(c.Res.CPUPolicy) },
		Set: func(c *Container, v string) error { c.Res.CPUPolicy = cgroup.CPUPolicy(v); return nil }})

	add(&property{Name: "cpu_limit", Dynamic: true, Tag: PropCPULimit,
		Get: func(c *Container) string { return strconv.FormatFloat(c.Res.CPULimitCores, 'f', -1, 64) },
		Set: setFloat(func(c *Container) *float64 { return &c.Res.CPULimitCores })})

	add(&property{Name: "cpu_guarantee", Dynamic: true, Tag: PropCPUGuarantee,
		Get: func(c *Container) string { return strconv.FormatFloat(c.Res.CPUGuaranteeCores, 'f', -1, 64) },
		Set: setFloat(func(c *Container) *float64 { return &c.Res.CPUGuaranteeCores })})

	add(&property{Name: "respawn", Tag: PropRespawn,
		Get: func(c *Container) string { return strconv.FormatBool(c.ToRespawn) },
		Set: func(c *Container, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "respawn: not boolean: %q", v)
			}
			c.ToRespawn = b
			return nil
		}})

	add(&property{Name: "max_respawns", Tag: PropMaxRespawns,
		Get: func(c *Container) string { return strconv.Itoa(c.MaxRespawns) },
		Set: func(c *Container, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "max_respawns: not numeric: %q", v)
			}
			c.MaxRespawns = n
			return nil
		}})

	add(&property{Name: "respawn_delay", Tag: PropRespawnDelay,
		Get: func(c *Container) string { return strconv.FormatFloat(c.RespawnDelay.Seconds(), 'f', -1, 64) },
		Set: func(c *Container, v string) error {
			d, err := parseDurationSeconds(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "respawn_delay: %v", err)
			}
			c.RespawnDelay = d.Duration()
			return nil
		}})

	add(&property{Name: "aging_time", Tag: PropAgingTime,
		Get: func(c *Container) string { return strconv.FormatFloat(c.AgingTime.Seconds(), 'f', -1, 64) },
		Set: func(c *Container, v string) error {
			d, err := parseDurationSeconds(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "aging_time: %v", err)
			}
			c.AgingTime = d.Duration()
			return nil
		}})

	add(&property{Name: "private", Tag: PropPrivate,
		Get: func(c *Container) string { return c.Private },
		Set: func(c *Container, v string) error { c.Private = v; return nil }})

	add(&property{Name: "isolate", Tag: PropIsolate,
		Get: func(c *Container) string { return strconv.FormatBool(c.Isolate) },
		Set: setBool(func(c *Container) *bool { return &c.Isolate })})

	add(&property{Name: "bind_dns", Tag: PropBindDNS,
		Get: func(c *Container) string { return strconv.FormatBool(c.BindDNS) },
		Set: setBool(func(c *Container) *bool { return &c.BindDNS })})

	add(&property{Name: "virt_mode", Tag: PropVirtMode,
		Get: func(c *Container) string { return string(c.VirtMode) },
		Set: func(c *Container, v string) error {
			switch v {
			case string(vmApp), "":
				c.VirtMode = vmApp
			case string(vmOS):
				c.VirtMode = vmOS
			default:
				return svcerr.New(svcerr.InvalidValue, "virt_mode: %q", v)
			}
			return nil
		}})

	add(&property{Name: "capabilities", Tag: PropCapabilities,
		Get: func(c *Container) string {
			if c.Cap.UserLimit == nil {
				return ""
			}
			return caps.FormatList(*c.Cap.UserLimit)
		},
		Set: func(c *Container, v string) error {
			set, err := caps.ParseList(v)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "capabilities: %v", err)
			}
			c.Cap.UserLimit = &set
			return nil
		}})

	add(&property{Name: "hostname", Tag: PropHostname,
		Get: func(c *Container) string { return c.Hostname },
		Set: func(c *Container, v string) error { c.Hostname = v; return nil }})

	add(&property{Name: "resolv_conf", Tag: PropResolvConf,
		Get: func(c *Container) string { return c.ResolvConf },
		Set: func(c *Container, v string) error { c.ResolvConf = v; return nil }})

	add(&property{Name: "access_level", Tag: PropAccessLevel,
		Get: func(c *Container) string { return strconv.Itoa(int(c.Access)) },
		Set: func(c *Container, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < int(AccessNone) || n > int(AccessInternal) {
				return svcerr.New(svcerr.InvalidValue, "access_level: %q", v)
			}
			if c.parent != nil && AccessLevel(n) > c.parent.Access {
				return svcerr.New(svcerr.Permission, "access_level exceeds parent's")
			}
			c.Access = AccessLevel(n)
			return nil
		}})

	add(&property{Name: "weak", Tag: PropWeak,
		Get: func(c *Container) string { return strconv.FormatBool(c.Weak) },
		Set: setBool(func(c *Container) *bool { return &c.Weak })})

	add(&property{Name: "umask", Tag: PropUmask,
		Get: func(c *Container) string { return strconv.FormatUint(uint64(c.Umask), 8) },
		Set: func(c *Container, v string) error {
			n, err := strconv.ParseUint(v, 8, 32)
			if err != nil {
				return svcerr.New(svcerr.InvalidValue, "umask: %q", v)
			}
			c.Umask = uint32(n)
			return nil
		}})

	// Bookkeeping-only properties: no dedicated Set (read via GetData, never
	// SetProperty), still round-tripped through Save/Load.
	add(&property{Name: "exit_status", Tag: PropExitStatus,
		Get:            func(c *Container) string { return strconv.Itoa(c.RT.ExitStatus) },
		Set:            func(c *Container, v string) error { return nil },
		SetFromRestore: func(c *Container, v string) error { n, _ := strconv.Atoi(v); c.RT.ExitStatus = n; return nil }})

	add(&property{Name: "oom_killed", Tag: PropOOMKilled,
		Get:            func(c *Container) string { return strconv.FormatBool(c.RT.OOMKilled) },
		Set:            func(c *Container, v string) error { return nil },
		SetFromRestore: func(c *Container, v string) error { b, _ := strconv.ParseBool(v); c.RT.OOMKilled = b; return nil }})

	add(&property{Name: "respawn_count", Tag: PropRespawnCount,
		Get:            func(c *Container) string { return strconv.Itoa(c.RT.RespawnCount) },
		Set:            func(c *Container, v string) error { return nil },
		SetFromRestore: func(c *Container, v string) error { n, _ := strconv.Atoi(v); c.RT.RespawnCount = n; return nil }})

	add(&property{Name: "root_pid", Tag: PropRootPid,
		Get:            func(c *Container) string { return strconv.Itoa(c.RT.TaskPid) },
		Set:            func(c *Container, v string) error { return nil },
		SetFromRestore: func(c *Container, v string) error { n, _ := strconv.Atoi(v); c.RT.TaskPid = n; return nil }})

	return r
}

func setUint(field func(c *Container) *uint64) func(c *Container, raw string) error {
	return func(c *Container, raw string) error {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return svcerr.New(svcerr.InvalidValue, "not a uint: %q", raw)
		}
		*field(c) = v
		return nil
	}
}

func setFloat(field func(c *Container) *float64) func(c *Container, raw string) error {
	return func(c *Container, raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return svcerr.New(svcerr.InvalidValue, "not a float: %q", raw)
		}
		*field(c) = v
		return nil
	}
}

func setBool(field func(c *Container) *bool) func(c *Container, raw string) error {
	return func(c *Container, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return svcerr.New(svcerr.InvalidValue, "not a bool: %q", raw)
		}
		*field(c) = v
		return nil
	}
}

func parseDurationSeconds(v string) (durationSeconds, error) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return durationSeconds(n), nil
}

// SetProperty validates and assigns a property by name, marking it dirty.
// Static properties refuse application to a live container.
func (c *Container) SetProperty(name, value string) error {
	p, ok := registry[name]
	if !ok {
		return svcerr.New(svcerr.InvalidProperty, "unknown property %q", name)
	}
	if !p.Dynamic && (c.State == Running || c.State == Meta || c.State == Paused) {
		return svcerr.New(svcerr.InvalidState, "property %q is static, container is %s", name, c.State)
	}
	if !c.dirty.isSet(p.Tag) {
		if _, pending := c.pendingOld[p.Tag]; !pending {
			c.pendingOld[p.Tag] = p.Get(c)
		}
	}
	if err := p.Set(c, value); err != nil {
		return err
	}
	c.dirty.set(p.Tag)
	return nil
}

// GetProperty reads a property's current value by name.
func (c *Container) GetProperty(name string) (string, error) {
	p, ok := registry[name]
	if !ok {
		return "", svcerr.New(svcerr.InvalidProperty, "unknown property %q", name)
	}
	return p.Get(c), nil
}
