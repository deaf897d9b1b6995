// Package eventloop implements the single-threaded, epoll-driven pump that
// runs in the slave process: one epoll fd, one deadline-ordered timer heap,
// and a dispatch table routing fd-readiness and timer firings to the right
// Container or Holder method. It is the concrete implementation of
// internal/container's Scheduler interface, closing the dependency-injection
// seam that package defines.
package eventloop

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/supervisr/core/internal/svcerr"
)

const maxEpollEvents = 64

// fdWatch is one registered fd and the callback invoked when it is
// readable.
type fdWatch struct {
	fd         int
	onReadable func()
}

// Loop owns the epoll fd, the timer heap and every registered fd watch. All
// public methods are safe to call from any goroutine; only Run itself
// blocks in epoll_wait.
type Loop struct {
	epfd int

	wakeR, wakeW int // self-pipe used to interrupt a blocked epoll_wait

	mu          sync.Mutex
	watches     map[uint64]*fdWatch
	fdToID      map[int]uint64
	nextID      uint64
	timers      timerHeap
	reaperFD    int
	onReaper    func()

	stopped int32
	log     *zap.Logger
}

// New creates the epoll instance and its wake pipe, registering the wake
// pipe's read end with epoll so ScheduleAfter/Register calls from other
// goroutines can interrupt an in-progress epoll_wait.
func New(log *zap.Logger) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, svcerr.Wrap(err, "epoll_create1")
	}
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(epfd)
		return nil, svcerr.Wrap(err, "create wake pipe")
	}
	l := &Loop{
		epfd:     epfd,
		wakeR:    fds[0],
		wakeW:    fds[1],
		watches:  make(map[uint64]*fdWatch),
		fdToID:   make(map[int]uint64),
		reaperFD: -1,
		log:      log,
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, l.wakeR, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(l.wakeR)}); err != nil {
		unix.Close(l.wakeR)
		unix.Close(l.wakeW)
		unix.Close(epfd)
		return nil, svcerr.Wrap(err, "register wake pipe")
	}
	return l, nil
}

// Close releases the epoll fd and wake pipe. Callers must have already
// returned from Run.
func (l *Loop) Close() error {
	unix.Close(l.wakeR)
	unix.Close(l.wakeW)
	return unix.Close(l.epfd)
}

func (l *Loop) wake() {
	var b [1]byte
	_, _ = unix.Write(l.wakeW, b[:])
}

func (l *Loop) drainWake() {
	var b [64]byte
	for {
		n, err := unix.Read(l.wakeR, b[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// RegisterFD watches fd for readability, invoking onReadable from the Run
// goroutine every time epoll reports it ready (level-triggered — the
// callback is responsible for draining fd until EAGAIN if it wants
// edge-triggered semantics).
func (l *Loop) RegisterFD(fd int, onReadable func()) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		return 0, svcerr.Wrap(err, "epoll_ctl add fd %d", fd)
	}
	l.nextID++
	id := l.nextID
	l.watches[id] = &fdWatch{fd: fd, onReadable: onReadable}
	l.fdToID[fd] = id
	l.wake()
	return id, nil
}

// UnregisterFD removes a previously registered watch. Unknown ids are a
// silent no-op: a watch may already have been dropped by fd closure.
func (l *Loop) UnregisterFD(watchID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.watches[watchID]
	if !ok {
		return
	}
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, w.fd, nil)
	delete(l.watches, watchID)
	delete(l.fdToID, w.fd)
}

// RegisterOOMFD implements container.Scheduler: OOM eventfds get the same
// generic fd-watch treatment as everything else, delivering to whatever
// Container-owned callback the caller supplied.
func (l *Loop) RegisterOOMFD(fd int, onReadable func()) (uint64, error) {
	return l.RegisterFD(fd, func() {
		var buf [8]byte
		_, _ = unix.Read(fd, buf[:]) // eventfd counter read, required before re-arming
		onReadable()
	})
}

// UnregisterOOMFD implements container.Scheduler.
func (l *Loop) UnregisterOOMFD(watchID uint64) { l.UnregisterFD(watchID) }

// ScheduleAfter implements container.Scheduler: arranges fn to run from the
// Run goroutine at or after now+d, returning a cancel func safe to call
// from any goroutine (including from within fn itself).
func (l *Loop) ScheduleAfter(d time.Duration, fn func()) func() {
	l.mu.Lock()
	entry := &timerEntry{deadline: time.Now().Add(d), fn: fn}
	heap.Push(&l.timers, entry)
	l.mu.Unlock()
	l.wake()
	return func() {
		l.mu.Lock()
		entry.canceled = true
		l.mu.Unlock()
	}
}

// SetReaperFD designates fd as the reaper event pipe: within a single
// epoll_wait batch, its readiness is dispatched before every other fd's, so
// exit events are always visible to Container state before client-facing
// work in the same iteration observes it.
func (l *Loop) SetReaperFD(fd int, onReadable func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		return svcerr.Wrap(err, "epoll_ctl add reaper fd %d", fd)
	}
	l.reaperFD = fd
	l.onReaper = onReadable
	return nil
}

// Stop requests the loop exit at the next epoll_wait wakeup.
func (l *Loop) Stop() {
	atomic.StoreInt32(&l.stopped, 1)
	l.wake()
}

// Run blocks in a cooperative epoll_wait loop until ctx is canceled or Stop
// is called. It is the only suspension point in the slave process; every
// registered callback must be non-blocking.
func (l *Loop) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	events := make([]unix.EpollEvent, maxEpollEvents)
	for atomic.LoadInt32(&l.stopped) == 0 {
		timeout := l.epollTimeout()
		n, err := unix.EpollWait(l.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return svcerr.Wrap(err, "epoll_wait")
		}

		reaperFD := l.reaperFdSnapshot()
		var reaperFired bool
		var rest []unix.EpollEvent
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case l.wakeR:
				l.drainWake()
			case reaperFD:
				reaperFired = true
			default:
				rest = append(rest, events[i])
			}
		}
		if reaperFired {
			l.dispatchReaper()
		}
		for _, ev := range rest {
			l.dispatchFD(int(ev.Fd))
		}

		l.fireDueTimers()
	}
	return nil
}

func (l *Loop) reaperFdSnapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reaperFD
}

func (l *Loop) dispatchReaper() {
	l.mu.Lock()
	fn := l.onReaper
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *Loop) dispatchFD(fd int) {
	l.mu.Lock()
	id, ok := l.fdToID[fd]
	var fn func()
	if ok {
		fn = l.watches[id].onReadable
	}
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *Loop) fireDueTimers() {
	now := time.Now()
	l.mu.Lock()
	due := l.timers.popDue(now)
	l.mu.Unlock()
	for _, e := range due {
		e.fn()
	}
}

func (l *Loop) epollTimeout() int {
	l.mu.Lock()
	deadline, ok := l.timers.nextDeadline()
	l.mu.Unlock()
	if !ok {
		return -1
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	ms := d / time.Millisecond
	if ms > int64max {
		return int(int64max)
	}
	return int(ms)
}

const int64max = 1<<31 - 1
