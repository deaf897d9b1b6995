// Package reaper implements the master/subreaper-slave process split: the
// master sets itself as PR_SET_CHILD_SUBREAPER and harvests every
// descendant's wait status via wait4(WNOHANG), forwarding (pid, status) pairs to the
// long-lived slave over a fixed pair of inherited pipes; the slave
// correlates each pid back to its owning container and acknowledges once
// the status has been durably recorded.
package reaper

import (
	"encoding/binary"
	"io"

	"github.com/supervisr/core/internal/svcerr"
)

// Fixed descriptors the slave dup2s its inherited pipe ends onto at
// startup, matching the wire contract both processes are built against.
const (
	EventPipeFD = 128
	AckPipeFD   = 129
)

// exitMsgSize is the encoded size of one (pid, status, oomKilled) triple:
// two int32s plus one byte flag, padded to a 4-byte boundary so every
// message is a fixed, easily-resynced width on the pipe.
const exitMsgSize = 12

// WriteExitMsg encodes one exit event onto w: master -> slave over the
// event pipe.
func WriteExitMsg(w io.Writer, pid, status int, oomKilled bool) error {
	var buf [exitMsgSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(pid)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(status)))
	if oomKilled {
		buf[8] = 1
	}
	if _, err := w.Write(buf[:]); err != nil {
		return svcerr.Wrap(err, "write exit message")
	}
	return nil
}

// ReadExitMsg decodes one exit event from r, blocking until exitMsgSize
// bytes are available. Used by tests driving an in-memory pipe; the slave's non-blocking epoll-driven read path uses
// decodeExitMsg directly against its own byte buffer instead.
func ReadExitMsg(r io.Reader) (pid, status int, oomKilled bool, err error) {
	var buf [exitMsgSize]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, false, svcerr.Wrap(err, "read exit message")
	}
	return decodeExitMsg(buf[:])
}

// decodeExitMsg parses one exit message out of the front of buf, which must
// be at least exitMsgSize bytes.
func decodeExitMsg(buf []byte) (pid, status int, oomKilled bool, err error) {
	pid = int(int32(binary.LittleEndian.Uint32(buf[0:4])))
	status = int(int32(binary.LittleEndian.Uint32(buf[4:8])))
	oomKilled = buf[8] != 0
	return pid, status, oomKilled, nil
}

// ackMsgSize is the encoded size of one acknowledged pid.
const ackMsgSize = 4

// WriteAck encodes one acknowledged pid onto w: slave -> master over the
// ack pipe.
func WriteAck(w io.Writer, pid int) error {
	var buf [ackMsgSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(pid)))
	if _, err := w.Write(buf[:]); err != nil {
		return svcerr.Wrap(err, "write ack")
	}
	return nil
}

// ReadAck decodes one acknowledged pid from r.
func ReadAck(r io.Reader) (int, error) {
	var buf [ackMsgSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, svcerr.Wrap(err, "read ack")
	}
	return int(int32(binary.LittleEndian.Uint32(buf[:]))), nil
}
