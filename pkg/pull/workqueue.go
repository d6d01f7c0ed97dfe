package pull

import (
	"context"

	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// WorkQueue is the bounded, multi-producer/multi-consumer FIFO shared
// between ScanWorker and PullEngine (scan_queue, fetch_queue). A buffered
// channel already gives FIFO ordering, blocking capacity-bounded sends,
// and a natural "notify on non-empty" receive — so unlike a queue that
// layers worker
// goroutines, a stop channel, and a drain loop on top of its channel,
// WorkQueue stays a thin wrapper: the owner's event loop selects on
// Chan() directly instead of polling a separate notification channel.
type WorkQueue[T any] struct {
	ch chan T
}

// NewWorkQueue returns a WorkQueue with the given bounded capacity.
func NewWorkQueue[T any](capacity int) *WorkQueue[T] {
	return &WorkQueue[T]{ch: make(chan T, capacity)}
}

// Push enqueues msg, blocking if the queue is at capacity, honoring ctx
// cancellation.
func (q *WorkQueue[T]) Push(ctx context.Context, msg T) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return pullerrors.ErrCancelledSentinel
	}
}

// TryPush enqueues msg without blocking, reporting false if the queue is
// currently full.
func (q *WorkQueue[T]) TryPush(msg T) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// Chan exposes the receive side for the owner's select-based event loop —
// a cooperative event source that's just one more case in that select.
func (q *WorkQueue[T]) Chan() <-chan T {
	return q.ch
}

// Drain performs a non-blocking pop of everything immediately available,
// up to max items (0 means unlimited). ScanWorker's idle drain does not
// use it; it selects on Chan() directly.
func (q *WorkQueue[T]) Drain(max int) []T {
	var out []T
	for max == 0 || len(out) < max {
		select {
		case msg := <-q.ch:
			out = append(out, msg)
		default:
			return out
		}
	}
	return out
}

// Len reports the number of messages currently buffered (not counting any
// blocked on Push).
func (q *WorkQueue[T]) Len() int {
	return len(q.ch)
}
