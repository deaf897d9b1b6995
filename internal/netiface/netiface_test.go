package netiface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/supervisr/core/internal/svcerr"
)

func TestUnimplementedRefusesAttachAndUpdateButDetachIsNoop(t *testing.T) {
	h := Unimplemented()

	assert.True(t, svcerr.Is(h.Attach("eth0", 1, Limits{RateBps: 1}), svcerr.NotSupported))
	assert.True(t, svcerr.Is(h.Update(Limits{RateBps: 2}), svcerr.NotSupported))
	assert.NoError(t, h.Detach())
}
