package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// AppendTask is a deferred ledger append. The projection update for the
// movement has already committed; the task only carries the audit write.
type AppendTask struct {
	Movement domain.Movement `json:"movement"`
	Attempt  int             `json:"attempt"`
}

// AppendQueue is an at-least-once delivery channel for deferred ledger
// appends. Consumers must tolerate redelivery; deduplication happens at the
// storage layer via the movement correlation id.
type AppendQueue interface {
	Enqueue(ctx context.Context, t AppendTask) error

	// Dequeue exposes the consumer side. The channel closes after Close.
	Dequeue() <-chan AppendTask

	Close() error
}
