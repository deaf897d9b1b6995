package eventloop

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func runLoopFor(t *testing.T, l *Loop, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(d + 2*time.Second):
		t.Fatal("loop did not stop in time")
	}
}

func TestRegisterFDFiresOnReadable(t *testing.T) {
	l := newTestLoop(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fired := make(chan struct{}, 1)
	watchID, err := l.RegisterFD(int(r.Fd()), func() {
		var buf [1]byte
		r.Read(buf[:])
		fired <- struct{}{}
	})
	require.NoError(t, err)
	defer l.UnregisterFD(watchID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go l.Run(ctx)

	_, err = w.Write([]byte{1})
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("RegisterFD callback never fired")
	}
	l.Stop()
}

func TestScheduleAfterFiresOnce(t *testing.T) {
	l := newTestLoop(t)

	fired := make(chan struct{}, 1)
	l.ScheduleAfter(10*time.Millisecond, func() { fired <- struct{}{} })

	runLoopFor(t, l, 200*time.Millisecond)

	select {
	case <-fired:
	default:
		t.Fatal("timer never fired within the loop's run window")
	}
}

func TestScheduleAfterCancelPreventsFiring(t *testing.T) {
	l := newTestLoop(t)

	fired := false
	cancel := l.ScheduleAfter(20*time.Millisecond, func() { fired = true })
	cancel()

	runLoopFor(t, l, 150*time.Millisecond)
	assert.False(t, fired, "canceled timer must not fire")
}

func TestSetReaperFDDispatchedBeforeOtherFDs(t *testing.T) {
	l := newTestLoop(t)

	evtR, evtW, err := os.Pipe()
	require.NoError(t, err)
	defer evtR.Close()
	defer evtW.Close()
	otherR, otherW, err := os.Pipe()
	require.NoError(t, err)
	defer otherR.Close()
	defer otherW.Close()

	var order []string
	require.NoError(t, l.SetReaperFD(int(evtR.Fd()), func() {
		var buf [1]byte
		evtR.Read(buf[:])
		order = append(order, "reaper")
	}))
	_, err = l.RegisterFD(int(otherR.Fd()), func() {
		var buf [1]byte
		otherR.Read(buf[:])
		order = append(order, "other")
	})
	require.NoError(t, err)

	_, err = otherW.Write([]byte{1})
	require.NoError(t, err)
	_, err = evtW.Write([]byte{1})
	require.NoError(t, err)

	runLoopFor(t, l, 150*time.Millisecond)

	require.Len(t, order, 2)
	assert.Equal(t, "reaper", order[0], "the reaper fd's event must dispatch first within the batch")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	l := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
