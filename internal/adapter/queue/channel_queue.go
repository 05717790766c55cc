package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/stock-ledger/internal/port"
)

var ErrQueueClosed = errors.New("queue closed")

// ChannelQueue is the in-process append queue: a buffered channel drained by
// worker goroutines. Workers re-enqueue failed tasks, but tasks do not
// survive a process crash; the projection, not the queue, is authoritative.
type ChannelQueue struct {
	tasks  chan port.AppendTask
	mu     sync.RWMutex
	closed bool
}

func NewChannelQueue(size int) *ChannelQueue {
	return &ChannelQueue{tasks: make(chan port.AppendTask, size)}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, t port.AppendTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Dequeue() <-chan port.AppendTask {
	return q.tasks
}

func (q *ChannelQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.tasks)
	return nil
}
