package reaper

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitMsgRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExitMsg(&buf, 4242, -1, true))

	pid, status, oomKilled, err := ReadExitMsg(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
	assert.Equal(t, -1, status)
	assert.True(t, oomKilled)
}

func TestExitMsgRoundTripNoOOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExitMsg(&buf, 17, 0, false))

	pid, status, oomKilled, err := ReadExitMsg(&buf)
	require.NoError(t, err)
	assert.Equal(t, 17, pid)
	assert.Equal(t, 0, status)
	assert.False(t, oomKilled)
}

func TestExitMsgMultipleMessagesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExitMsg(&buf, 1, 0, false))
	require.NoError(t, WriteExitMsg(&buf, 2, 137, true))

	pid1, status1, oom1, err := ReadExitMsg(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, pid1)
	assert.Equal(t, 0, status1)
	assert.False(t, oom1)

	pid2, status2, oom2, err := ReadExitMsg(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, pid2)
	assert.Equal(t, 137, status2)
	assert.True(t, oom2)
}

func TestReadExitMsgShortReadFails(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	_, _, _, err := ReadExitMsg(buf)
	assert.Error(t, err)
}

func TestDecodeExitMsgDirectlyFromBuffer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExitMsg(&buf, 99, 9, false))

	pid, status, oomKilled, err := decodeExitMsg(buf.Bytes()[:exitMsgSize])
	require.NoError(t, err)
	assert.Equal(t, 99, pid)
	assert.Equal(t, 9, status)
	assert.False(t, oomKilled)
}

func TestAckRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAck(&buf, 555))

	pid, err := ReadAck(&buf)
	require.NoError(t, err)
	assert.Equal(t, 555, pid)
}

func TestReadAckShortReadFails(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2})
	_, err := ReadAck(buf)
	assert.Error(t, err)
}
