package engine

import "sync/atomic"

// spscNode is one link of a spscQueue.
type spscNode[T any] struct {
	val  T
	next atomic.Pointer[spscNode[T]]
}

// spscQueue is an unbounded single-producer/single-consumer FIFO.
//
// The producer only touches tail, the consumer only touches head; the one
// shared word per node is its next pointer, published with an atomic store.
// Neither side ever blocks, locks or spins, so the queue is safe to drain
// from the realtime side.
//
// Two queues cross the control/realtime boundary:
//   - pending: committed transactions, control -> realtime
//   - done: drained transactions and completed flow jobs, realtime -> control
type spscQueue[T any] struct {
	head *spscNode[T] // consumer side; always a consumed stub
	tail *spscNode[T] // producer side
	n    atomic.Int64
}

// newSPSCQueue creates an empty queue.
func newSPSCQueue[T any]() *spscQueue[T] {
	stub := &spscNode[T]{}
	return &spscQueue[T]{head: stub, tail: stub}
}

// Push appends v. Producer side only.
func (q *spscQueue[T]) Push(v T) {
	n := &spscNode[T]{val: v}
	q.tail.next.Store(n)
	q.tail = n
	q.n.Add(1)
}

// TryPop removes and returns the front value without blocking.
// Returns (zero, false) if the queue is empty. Consumer side only.
func (q *spscQueue[T]) TryPop() (T, bool) {
	var zero T
	next := q.head.next.Load()
	if next == nil {
		return zero, false
	}
	v := next.val

	// Nil out the slot so the new stub does not retain the value.
	next.val = zero
	q.head = next
	q.n.Add(-1)
	return v, true
}

// Len returns the approximate queue length. Safe from either side.
func (q *spscQueue[T]) Len() int {
	return int(q.n.Load())
}
