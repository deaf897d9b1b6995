package container

import (
	"time"

	"github.com/supervisr/core/internal/caps"
)

const (
	vmApp = caps.ModeApp
	vmOS  = caps.ModeOS
)

// durationSeconds parses/formats a duration given in fractional seconds, the
// wire shape.
type durationSeconds float64

func (d durationSeconds) Duration() time.Duration {
	return time.Duration(float64(d) * float64(time.Second))
}
