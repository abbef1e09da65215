package bus

import (
	"sync/atomic"

	"github.com/yanun0323/pkg/channel"

	"market-relay/internal/model"
	"market-relay/pkg/exception"
)

// Queue is a bounded, non-blocking command queue. Producers never wait on
// the consumer: a full queue is reported back to the caller instead.
type Queue struct {
	ch     chan model.Command
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.Command, capacity)}
}

// TryPublish enqueues a command without blocking.
func (q *Queue) TryPublish(cmd model.Command) error {
	if q.closed.Load() {
		return exception.ErrCommandQueueClosed
	}
	if !channel.TryPush(q.ch, cmd) {
		if q.closed.Load() {
			return exception.ErrCommandQueueClosed
		}
		return exception.ErrCommandQueueFull
	}
	return nil
}

// C exposes the receive side for the command consumer.
func (q *Queue) C() <-chan model.Command {
	return q.ch
}

// Len is the number of queued commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new commands. Commands already
// queued remain readable from C.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}
