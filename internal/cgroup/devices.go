package cgroup

import "fmt"

// DeviceType is the devices.{allow,deny} type column: char, block or all.
type DeviceType byte

const (
	DeviceChar  DeviceType = 'c'
	DeviceBlock DeviceType = 'b'
	DeviceAll   DeviceType = 'a'
)

// DeviceRule is one device ACL entry.
type DeviceRule struct {
	Type        DeviceType
	Major, Minor int32 // -1 means wildcard
	Access      string // subset of "rwm"
	Allow       bool
}

func wildcard(v int32) string {
	if v < 0 {
		return "*"
	}
	return fmt.Sprintf("%d", v)
}

func (r DeviceRule) line() string {
	return fmt.Sprintf("%c %s:%s %s", r.Type, wildcard(r.Major), wildcard(r.Minor), r.Access)
}

// ApplyDefault installs the conservative default device ACL: deny all, then
// allow the handful of devices every container needs (/dev/null, /dev/zero,
// /dev/full, /dev/random, /dev/urandom, /dev/tty, /dev/ptmx, /dev/pts/*).
func (c Cgroup) ApplyDefault() error {
	if err := c.Set("devices.deny", "a"); err != nil {
		return err
	}
	defaults := []DeviceRule{
		{Type: DeviceChar, Major: 1, Minor: 3, Access: "rwm"},  // /dev/null
		{Type: DeviceChar, Major: 1, Minor: 5, Access: "rwm"},  // /dev/zero
		{Type: DeviceChar, Major: 1, Minor: 7, Access: "rwm"},  // /dev/full
		{Type: DeviceChar, Major: 1, Minor: 8, Access: "rwm"},  // /dev/random
		{Type: DeviceChar, Major: 1, Minor: 9, Access: "rwm"},  // /dev/urandom
		{Type: DeviceChar, Major: 5, Minor: 0, Access: "rwm"},  // /dev/tty
		{Type: DeviceChar, Major: 5, Minor: 2, Access: "rwm"},  // /dev/ptmx
		{Type: DeviceChar, Major: 136, Minor: -1, Access: "rwm"}, // /dev/pts/*
	}
	for _, d := range defaults {
		d.Allow = true
		if err := c.ApplyDevice(d); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDevice writes a single device ACL entry.
func (c Cgroup) ApplyDevice(rule DeviceRule) error {
	knob := "devices.deny"
	if rule.Allow {
		knob = "devices.allow"
	}
	return c.Set(knob, rule.line())
}
