package coordinator

import (
	"context"
	"sync"
	"time"
)

// DefaultQueueCapacity matches the single-slot channel the tray has always used.
const DefaultQueueCapacity = 1

// Queue is the bounded, ordered command channel between any number of
// senders and the one coordinator. The command channel itself is never
// closed; Close signals shutdown through done so late senders cannot panic.
type Queue struct {
	ch          chan Command
	done        chan struct{}
	once        sync.Once
	sendTimeout time.Duration
}

// NewQueue creates a queue. capacity below 1 is raised to 1. A positive
// sendTimeout bounds how long Send waits for space.
func NewQueue(capacity int, sendTimeout time.Duration) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:          make(chan Command, capacity),
		done:        make(chan struct{}),
		sendTimeout: sendTimeout,
	}
}

// Send enqueues cmd, waiting while the queue is full. It returns false if
// the queue is closed, ctx ends or the send timeout elapses first.
func (q *Queue) Send(ctx context.Context, cmd Command) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	var timeout <-chan time.Time
	if q.sendTimeout > 0 {
		t := time.NewTimer(q.sendTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case q.ch <- cmd:
		// Both cases may have been ready; a closed queue never reads cmd.
		return !q.Closed()
	case <-q.done:
		return false
	case <-ctx.Done():
		return false
	case <-timeout:
		return false
	}
}

// Close stops accepting commands and ends the coordinator loop. Commands
// still buffered are discarded.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len is the number of buffered commands.
func (q *Queue) Len() int { return len(q.ch) }

// Cap is the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
