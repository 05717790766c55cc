package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

func TestChannelQueue_RoundTrip(t *testing.T) {
	q := NewChannelQueue(10)
	defer q.Close()

	task := port.AppendTask{Movement: domain.Movement{CorrelationID: "c-1", Quantity: 3}}
	if err := q.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	got := <-q.Dequeue()
	if got.Movement.CorrelationID != "c-1" || got.Movement.Quantity != 3 {
		t.Errorf("unexpected task: %+v", got)
	}
}

func TestChannelQueue_CloseDrains(t *testing.T) {
	q := NewChannelQueue(10)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), port.AppendTask{}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	q.Close()

	n := 0
	for range q.Dequeue() {
		n++
	}
	if n != 3 {
		t.Errorf("expected 3 buffered tasks after close, got %d", n)
	}

	if err := q.Enqueue(context.Background(), port.AppendTask{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestChannelQueue_EnqueueHonorsContext(t *testing.T) {
	q := NewChannelQueue(1)
	defer q.Close()

	if err := q.Enqueue(context.Background(), port.AppendTask{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, port.AppendTask{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled on full queue, got %v", err)
	}
}
