// Package queue implements the fixed-capacity blocking FIFO (spec.md §4.G),
// grounded on original_source/src/queue.cpp: a ring buffer guarded by one
// mutex and two condition variables (not-full, not-empty), with an open
// flag that lets Close drain every blocked Pop with the flushed signal.
package queue

import "sync"

// Bounded is a fixed-capacity FIFO of opaque items. Zero value is not
// usable; construct with New.
type Bounded struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items []interface{}
	head  int
	count int

	open bool
}

// New returns a closed (not yet open) bounded queue of the given capacity.
// capacity must be >= 1.
func New(capacity int) *Bounded {
	if capacity < 1 {
		capacity = 1
	}
	q := &Bounded{items: make([]interface{}, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Open marks the queue ready to accept Push/Pop.
func (q *Bounded) Open() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.open = true
}

// Close flips the open flag and wakes every blocked Push and Pop so they
// re-check state; a Pop on a closed, empty queue returns (nil, false) — the
// flushed signal.
func (q *Bounded) Close() {
	q.mu.Lock()
	q.open = false
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Signal wakes every blocked Pop exactly once, without touching the open
// flag, so each re-checks state and either receives an item or blocks
// again. This is the queue.cpp-only operation spec.md §9 leaves under-
// specified; the resolution adopted here is a one-shot broadcast with no
// other side effect.
func (q *Bounded) Signal() {
	q.notEmpty.Broadcast()
}

// Wait blocks the caller until the queue's size reaches 0, for producers
// that want to quiesce before shutdown.
func (q *Bounded) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count > 0 {
		q.notFull.Wait()
	}
}

// Size returns the current number of buffered items.
func (q *Bounded) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Empty reports whether the queue currently holds no items.
func (q *Bounded) Empty() bool {
	return q.Size() == 0
}

// Push blocks while the queue is full and open. It returns true once item
// was accepted, or false if the queue was (or became) closed while waiting
// — item is then not enqueued.
func (q *Bounded) Push(item interface{}) bool {
	q.mu.Lock()
	for q.count == len(q.items) && q.open {
		q.notFull.Wait()
	}
	accepted := false
	if q.open {
		q.items[(q.head+q.count)%len(q.items)] = item
		q.count++
		accepted = true
	}
	q.mu.Unlock()
	if accepted {
		q.notEmpty.Broadcast()
	}
	return accepted
}

// Pop blocks while the queue is empty and open. It returns (item, true) on
// success, or (nil, false) once the queue is closed and drained — the
// flushed signal.
func (q *Bounded) Pop() (interface{}, bool) {
	q.mu.Lock()
	for q.count == 0 && q.open {
		q.notEmpty.Wait()
	}
	var item interface{}
	ok := false
	flushed := false
	if q.count > 0 {
		item = q.items[q.head]
		q.items[q.head] = nil
		q.head = (q.head + 1) % len(q.items)
		q.count--
		ok = true
	} else if !q.open {
		flushed = true
	}
	q.mu.Unlock()
	if ok {
		q.notFull.Broadcast()
	} else if flushed {
		q.notFull.Broadcast()
	}
	return item, ok
}
