package launcher

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/svcerr"
)

const (
	bindFlags   = unix.MS_BIND | unix.MS_NOSUID | unix.MS_PRIVATE
	roBindFlags = bindFlags | unix.MS_RDONLY
	tmpfsFlags  = unix.MS_NOSUID | unix.MS_NOATIME | unix.MS_NODEV
)

// buildMountTree constructs the new container's mount tree under newRoot:
// the caller-supplied bind mounts, then /proc, /sys, a tmpfs on /dev and
// resolv.conf, then chroots into newRoot.
// Runs in the staged child, which is cloned with CLONE_NEWNS.
func buildMountTree(newRoot string, binds []BindMount, resolvConf string) error {
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return svcerr.Wrap(err, "remount root private")
	}

	for _, b := range binds {
		target := filepath.Join(newRoot, b.Target)
		if err := ensureMountpoint(target); err != nil {
			return err
		}
		flags := uintptr(bindFlags)
		if b.ReadOnly {
			flags = roBindFlags
		}
		if err := unix.Mount(b.Source, target, "", flags, ""); err != nil {
			return svcerr.Wrap(err, "bind mount %s -> %s", b.Source, target)
		}
	}

	for _, special := range []struct{ src, target, fstype string }{
		{"proc", "proc", "proc"},
		{"sysfs", "sys", "sysfs"},
	} {
		target := filepath.Join(newRoot, special.target)
		if err := ensureMountpoint(target); err != nil {
			return err
		}
		if err := unix.Mount(special.src, target, special.fstype, tmpfsFlags, ""); err != nil {
			return svcerr.Wrap(err, "mount %s", special.target)
		}
	}

	devTarget := filepath.Join(newRoot, "dev")
	if err := ensureMountpoint(devTarget); err != nil {
		return err
	}
	if err := unix.Mount("tmpfs", devTarget, "tmpfs", tmpfsFlags, "mode=755"); err != nil {
		return svcerr.Wrap(err, "mount /dev")
	}

	if resolvConf != "" {
		resolvPath := filepath.Join(newRoot, "etc", "resolv.conf")
		if err := os.WriteFile(resolvPath, []byte(resolvConf), 0o644); err != nil {
			return svcerr.Wrap(err, "write resolv.conf")
		}
	}

	return pivotInto(newRoot)
}

func ensureMountpoint(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil && !os.IsExist(err) {
		return svcerr.Wrap(err, "create mountpoint %s", path)
	}
	return nil
}

// pivotInto chroots (not pivot_root, to tolerate newRoot living on the same
// filesystem as the supervisor's own root) into newRoot and chdir's to /.
func pivotInto(newRoot string) error {
	if err := unix.Chroot(newRoot); err != nil {
		return svcerr.Wrap(err, "chroot %s", newRoot)
	}
	if err := unix.Chdir("/"); err != nil {
		return svcerr.Wrap(err, "chdir / after chroot")
	}
	return nil
}
