package container

// EProperty tags a settable property for the dirty bitset and the property
// registry: dirty tracking is a fixed-size bitset indexed by prop tag.
type EProperty int

// The dynamically-settable properties plus enough static ones that
// Save/Load round-trip everything.
const (
	PropCommand EProperty = iota
	PropCwd
	PropRoot
	PropUser
	PropGroup
	PropEnv
	PropMemoryLimit
	PropMemoryGuarantee
	PropAnonLimit
	PropDirtyLimit
	PropRechargeOnPgfault
	PropIOLimit
	PropIOOpsLimit
	PropIOPolicy
	PropCPUPolicy
	PropCPULimit
	PropCPUGuarantee
	PropNetPriority
	PropNetLimit
	PropNetGuarantee
	PropRespawn
	PropMaxRespawns
	PropRespawnDelay
	PropAgingTime
	PropPrivate
	PropIsolate
	PropBindDNS
	PropVirtMode
	PropCapabilities
	PropHostname
	PropDevices
	PropUlimit
	PropBind
	PropIP
	PropDefaultGW
	PropResolvConf
	PropNet
	PropAccessLevel
	PropWeak
	PropUmask
	PropExitStatus
	PropOOMKilled
	PropRespawnCount
	PropRootPid

	propertyCount
)

// dirtySet is the fixed-size bitset.
type dirtySet [propertyCount / 64 + 1]uint64

func newDirtySet() dirtySet { return dirtySet{} }

func (d *dirtySet) set(tag EProperty) {
	d[tag/64] |= 1 << (tag % 64)
}

func (d *dirtySet) clear(tag EProperty) {
	d[tag/64] &^= 1 << (tag % 64)
}

func (d *dirtySet) isSet(tag EProperty) bool {
	return d[tag/64]&(1<<(tag%64)) != 0
}

// dirtyTags returns every currently-dirty tag, used by
// ApplyDynamicProperties to iterate the dirty set.
func (d *dirtySet) dirtyTags() []EProperty {
	var out []EProperty
	for tag := EProperty(0); tag < propertyCount; tag++ {
		if d.isSet(tag) {
			out = append(out, tag)
		}
	}
	return out
}
