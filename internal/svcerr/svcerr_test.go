package svcerr

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesKindAndContext(t *testing.T) {
	err := New(InvalidValue, "bad value %d", 7)
	assert.Equal(t, InvalidValue, err.Kind)
	assert.Contains(t, err.Error(), "bad value 7")
	assert.True(t, Is(err, InvalidValue))
	assert.False(t, Is(err, Busy))
}

func TestErrnoIncludedInMessage(t *testing.T) {
	err := Errno(Unknown, syscall.EBUSY, "knob write failed")
	assert.Contains(t, err.Error(), "errno")
	assert.Equal(t, syscall.EBUSY, err.Errno)
}

func TestWrapClassifiesAsUnknownAndUnwraps(t *testing.T) {
	cause := syscall.ENOENT
	err := Wrap(cause, "open %s", "/tmp/x")
	assert.Equal(t, Unknown, err.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestFromKnobWriteMapsEBUSYOnMemoryLimit(t *testing.T) {
	err := FromKnobWrite("memory.limit_in_bytes", syscall.EBUSY)
	assert.True(t, Is(err, InvalidValue))
}

func TestFromKnobWriteOtherErrnoIsUnknown(t *testing.T) {
	err := FromKnobWrite("cpu.shares", syscall.EINVAL)
	assert.True(t, Is(err, Unknown))
}

func TestFromKnobWriteNilIsNil(t *testing.T) {
	assert.NoError(t, FromKnobWrite("anything", nil))
}
