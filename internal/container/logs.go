package container

import "os"

// rotatePolicyTruncate is the only rotation policy implemented: once a
// stream's backing file exceeds LimitBytes, it is truncated to zero.
// Size-bounded rename-and-keep rotation is not implemented since nothing in
// this core owns a log-shipping path for the rotated-away bytes.
const rotatePolicyTruncate = "truncate"

// RotateLogs implements the periodic RotateLogs event: each of stdout and
// stderr is truncated once its backing file exceeds its configured
// LimitBytes. stdin is never rotated. A stream with no RotatePolicy or no
// LimitBytes is left alone.
func (c *Container) RotateLogs() {
	for _, s := range []StdStream{c.Stdout, c.Stderr} {
		c.rotateStream(s)
	}
}

func (c *Container) rotateStream(s StdStream) {
	if s.OutsidePath == "" || s.RotatePolicy != rotatePolicyTruncate || s.LimitBytes == 0 {
		return
	}
	fi, err := os.Stat(s.OutsidePath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logWarn("stat std stream for rotation", "path", s.OutsidePath, "error", err)
		}
		return
	}
	if uint64(fi.Size()) <= s.LimitBytes {
		return
	}
	if err := os.Truncate(s.OutsidePath, 0); err != nil {
		c.logWarn("rotate std stream", "path", s.OutsidePath, "error", err)
	}
}
