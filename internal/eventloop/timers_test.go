package eventloop

import (
	"container/heap"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdersByDeadline(t *testing.T) {
	base := time.Unix(1000, 0)
	var h timerHeap
	heap.Init(&h)

	heap.Push(&h, &timerEntry{deadline: base.Add(3 * time.Second)})
	heap.Push(&h, &timerEntry{deadline: base.Add(1 * time.Second)})
	heap.Push(&h, &timerEntry{deadline: base.Add(2 * time.Second)})

	first := heap.Pop(&h).(*timerEntry)
	second := heap.Pop(&h).(*timerEntry)
	third := heap.Pop(&h).(*timerEntry)

	assert.Equal(t, base.Add(1*time.Second), first.deadline)
	assert.Equal(t, base.Add(2*time.Second), second.deadline)
	assert.Equal(t, base.Add(3*time.Second), third.deadline)
}

func TestNextDeadlineSkipsCanceledEntries(t *testing.T) {
	base := time.Unix(2000, 0)
	var h timerHeap
	heap.Init(&h)

	canceled := &timerEntry{deadline: base.Add(time.Second), canceled: true}
	live := &timerEntry{deadline: base.Add(2 * time.Second)}
	heap.Push(&h, canceled)
	heap.Push(&h, live)

	d, ok := h.nextDeadline()
	require.True(t, ok)
	assert.Equal(t, live.deadline, d)
	assert.Equal(t, 1, h.Len(), "the canceled entry should have been dropped")
}

func TestNextDeadlineEmptyHeap(t *testing.T) {
	var h timerHeap
	_, ok := h.nextDeadline()
	assert.False(t, ok)
}

func TestPopDuePopsOnlyExpiredSkippingCanceled(t *testing.T) {
	base := time.Unix(3000, 0)
	var h timerHeap
	heap.Init(&h)

	heap.Push(&h, &timerEntry{deadline: base.Add(-2 * time.Second)})
	heap.Push(&h, &timerEntry{deadline: base.Add(-1 * time.Second), canceled: true})
	heap.Push(&h, &timerEntry{deadline: base.Add(5 * time.Second)})

	due := h.popDue(base)
	require.Len(t, due, 1)
	assert.True(t, due[0].deadline.Before(base))
	assert.Equal(t, 1, h.Len(), "the future entry stays on the heap")
}
