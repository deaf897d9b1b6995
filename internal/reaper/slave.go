package reaper

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/eventloop"
	"github.com/supervisr/core/internal/svcerr"
)

// Slave owns the long-lived, re-execed process that actually runs the
// supervision core: it reads exit events off the inherited event pipe and
// acknowledges each one back to the master once its owning container has
// recorded the status.
type Slave struct {
	evtFD int
	ack   *os.File
	log   *zap.Logger

	buf []byte // partial-message accumulator across non-blocking reads
}

// NewSlaveFromInheritedFDs dup2s the two ExtraFiles descriptors the master
// handed down (fd 3/4, see Master.spawnSlave) onto the fixed
// EventPipeFD/AckPipeFD, marks the event pipe non-blocking (read from it
// happens on the event loop's single goroutine and must never park it),
// and wraps them. Called once at slave startup, before anything else
// touches descriptors.
func NewSlaveFromInheritedFDs(log *zap.Logger) (*Slave, error) {
	if err := dup2Fixed(3, EventPipeFD); err != nil {
		return nil, err
	}
	if err := dup2Fixed(4, AckPipeFD); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(EventPipeFD, true); err != nil {
		return nil, svcerr.Wrap(err, "set event pipe non-blocking")
	}
	return &Slave{
		evtFD: EventPipeFD,
		ack:   os.NewFile(uintptr(AckPipeFD), "reaper-ack-pipe"),
		log:   log,
	}, nil
}

func dup2Fixed(from, to int) error {
	if from == to {
		return nil
	}
	if err := unix.Dup2(from, to); err != nil {
		return svcerr.Wrap(err, "dup2 %d -> %d", from, to)
	}
	_ = unix.Close(from)
	return nil
}

// EventPipeFD exposes the slave's read end of the event pipe, for
// Loop.SetReaperFD.
func (s *Slave) EventPipeFD() int { return s.evtFD }

// HandleReadable drains every complete exit message currently buffered on
// the event pipe via raw non-blocking reads (EAGAIN means "done for this
// wakeup", never a park), dispatches each through dispatch, and
// acknowledges it. An ack-write failure is fatal: the master is left
// holding the status forever otherwise, so the slave exits hard rather
// than risk a silently leaked zombie.
func (s *Slave) HandleReadable(dispatch func(pid, status int, oomKilled bool)) {
	var chunk [256]byte
	for {
		n, err := unix.Read(s.evtFD, chunk[:])
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if err != unix.EAGAIN {
				s.log.Sugar().Warnw("read event pipe", "error", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	for len(s.buf) >= exitMsgSize {
		pid, status, oomKilled, _ := decodeExitMsg(s.buf[:exitMsgSize])
		s.buf = s.buf[exitMsgSize:]

		dispatch(pid, status, oomKilled)
		if err := s.AckExitStatus(pid); err != nil {
			s.log.Sugar().Fatalw("ack exit status: unrecoverable, would leak a zombie", "pid", pid, "error", err)
		}
	}
}

// AckExitStatus writes pid back to the master over the ack pipe.
func (s *Slave) AckExitStatus(pid int) error {
	return WriteAck(s.ack, pid)
}

// Bind wires this slave's event pipe into loop as the reaper fd, routing
// every readable event through HandleReadable/dispatcher.HandleExit.
func (s *Slave) Bind(loop *eventloop.Loop, dispatcher *eventloop.Dispatcher) error {
	return loop.SetReaperFD(s.EventPipeFD(), func() {
		s.HandleReadable(dispatcher.HandleExit)
	})
}
