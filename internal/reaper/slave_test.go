package reaper

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// newTestSlave wires a Slave to a private, non-blocking pipe pair instead of
// the fixed EventPipeFD/AckPipeFD descriptors, so tests never collide with a
// real daemon's inherited fds.
func newTestSlave(t *testing.T) (s *Slave, evtW *os.File, ackR *os.File) {
	t.Helper()
	evtR, evtW, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { evtR.Close(); evtW.Close() })

	ackR, ackW, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { ackR.Close(); ackW.Close() })

	require.NoError(t, unix.SetNonblock(int(evtR.Fd()), true))

	return &Slave{
		evtFD: int(evtR.Fd()),
		ack:   ackW,
		log:   zap.NewNop(),
	}, evtW, ackR
}

func TestHandleReadableDispatchesAndAcks(t *testing.T) {
	s, evtW, ackR := newTestSlave(t)

	require.NoError(t, WriteExitMsg(evtW, 123, 0, false))

	var gotPid, gotStatus int
	var gotOOM bool
	s.HandleReadable(func(pid, status int, oomKilled bool) {
		gotPid, gotStatus, gotOOM = pid, status, oomKilled
	})

	assert.Equal(t, 123, gotPid)
	assert.Equal(t, 0, gotStatus)
	assert.False(t, gotOOM)

	ackedPid, err := ReadAck(ackR)
	require.NoError(t, err)
	assert.Equal(t, 123, ackedPid)
}

func TestHandleReadableDrainsMultipleQueuedMessages(t *testing.T) {
	s, evtW, ackR := newTestSlave(t)

	require.NoError(t, WriteExitMsg(evtW, 1, 0, false))
	require.NoError(t, WriteExitMsg(evtW, 2, 9, true))

	var pids []int
	s.HandleReadable(func(pid, status int, oomKilled bool) {
		pids = append(pids, pid)
	})
	assert.Equal(t, []int{1, 2}, pids)

	for _, want := range []int{1, 2} {
		got, err := ReadAck(ackR)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestHandleReadableBuffersPartialMessageAcrossCalls(t *testing.T) {
	s, evtW, ackR := newTestSlave(t)

	var encoded bytes.Buffer
	require.NoError(t, WriteExitMsg(&encoded, 7, 1, false))
	full := encoded.Bytes()

	// Write only the first half of the encoded message.
	_, err := evtW.Write(full[:exitMsgSize/2])
	require.NoError(t, err)

	var calls int
	s.HandleReadable(func(pid, status int, oomKilled bool) { calls++ })
	assert.Equal(t, 0, calls, "a partial message must not be dispatched yet")

	_, err = evtW.Write(full[exitMsgSize/2:])
	require.NoError(t, err)

	var gotPid int
	s.HandleReadable(func(pid, status int, oomKilled bool) { gotPid = pid; calls++ })
	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, gotPid)

	_, err = ReadAck(ackR)
	require.NoError(t, err)
}

func TestHandleReadableNoDataIsNoop(t *testing.T) {
	s, _, _ := newTestSlave(t)
	var calls int
	s.HandleReadable(func(pid, status int, oomKilled bool) { calls++ })
	assert.Equal(t, 0, calls)
}
