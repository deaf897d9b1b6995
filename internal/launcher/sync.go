package launcher

import (
	"bytes"
	"encoding/gob"
	"syscall"

	"github.com/supervisr/core/internal/svcerr"
	"github.com/supervisr/core/pkg/unixsocket"
)

// syncMsg is the small framed message exchanged over the credentialed
// socketpair during the staged fork handshake. The parent sends one syncMsg
// carrying the child's real pid, followed by the stage2 payload; the child
// then reports each completed stage with one syncMsg, or stageFailed on a
// fatal error, and the parent reads until stageExecReady or stageFailed.
type syncMsg struct {
	Stage   stageTag
	RealPid int
	VPid    int
	Errno   syscall.Errno
	ErrText string
}

type stageTag int

const (
	stageNamespaceReady stageTag = iota
	stageMountReady
	stageExecReady
	stageFailed
)

func newSyncPair() (parent, child *unixsocket.Socket, err error) {
	parent, child, err = unixsocket.NewSocketPair()
	if err != nil {
		return nil, nil, svcerr.Wrap(err, "create sync socketpair")
	}
	if err := parent.SetPassCred(1); err != nil {
		parent.Close()
		child.Close()
		return nil, nil, svcerr.Wrap(err, "SO_PASSCRED on sync socket")
	}
	return parent, child, nil
}

func sendSync(s *unixsocket.Socket, m syncMsg) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return svcerr.Wrap(err, "encode sync message")
	}
	return s.SendMsg(buf.Bytes(), unixsocket.Msg{})
}

func recvSync(s *unixsocket.Socket) (syncMsg, *syscall.Ucred, error) {
	var m syncMsg
	b := make([]byte, 4096)
	n, msg, err := s.RecvMsg(b)
	if err != nil {
		return m, nil, svcerr.Wrap(err, "recv sync message")
	}
	if err := gob.NewDecoder(bytes.NewReader(b[:n])).Decode(&m); err != nil {
		return m, nil, svcerr.Wrap(err, "decode sync message")
	}
	return m, msg.Cred, nil
}

// failStage reports a fatal error at the current stage to the parent side
// of the handshake; the parent treats any stageFailed message as the launch
// having failed regardless of what the child does afterwards.
func failStage(s *unixsocket.Socket, err error) {
	_ = sendSync(s, syncMsg{Stage: stageFailed, ErrText: err.Error()})
}
