package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/supervisr/core/internal/svcerr"
)

func TestUnimplementedRefusesAcquireButAllowsRelease(t *testing.T) {
	m := Unimplemented()

	_, err := m.AcquireRoot("c1", "/tmp/root.img")
	assert.True(t, svcerr.Is(err, svcerr.NotSupported))

	_, err = m.AcquireNamed("c1", "data")
	assert.True(t, svcerr.Is(err, svcerr.NotSupported))

	assert.NoError(t, m.Release(Handle{Name: "data"}))
}
