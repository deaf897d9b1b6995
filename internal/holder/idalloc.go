package holder

import "github.com/supervisr/core/internal/svcerr"

const (
	minContainerID = 1
	maxContainerID = 16384
)

// idAllocator is a free-list allocator over [minContainerID, maxContainerID];
// container ids are stable across the lifetime of a name and freed only on
// destroy, so a simple high-watermark plus a free list (rather than a
// bitset scan) keeps allocation O(1) in the common case.
type idAllocator struct {
	next int
	free []int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: minContainerID}
}

func (a *idAllocator) alloc() (int, error) {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id, nil
	}
	if a.next > maxContainerID {
		return 0, svcerr.New(svcerr.Unknown, "container id space exhausted")
	}
	id := a.next
	a.next++
	return id, nil
}

func (a *idAllocator) release(id int) {
	a.free = append(a.free, id)
}

// reserve marks id as taken without going through alloc, used while
// restoring containers from their persisted kv nodes (the id is already on
// disk, not freshly assigned).
func (a *idAllocator) reserve(id int) {
	if id >= a.next {
		a.next = id + 1
	}
}
