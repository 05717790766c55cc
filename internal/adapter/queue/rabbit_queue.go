package queue

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/port"
)

// RabbitQueue carries append tasks over a durable AMQP queue, so deferred
// ledger writes survive a process restart. Messages are acked only after
// they have been handed to a worker; the broker redelivers unacked tasks,
// and the movements table dedups redeliveries by correlation id.
type RabbitQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
	out  chan port.AppendTask
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewRabbitQueue(url, name string, log *zap.Logger) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	q := &RabbitQueue{conn: conn, ch: ch, name: name, out: make(chan port.AppendTask), log: log}
	if err := q.consume(); err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitQueue) Enqueue(ctx context.Context, t port.AppendTask) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (q *RabbitQueue) Dequeue() <-chan port.AppendTask {
	return q.out
}

func (q *RabbitQueue) consume() error {
	msgs, err := q.ch.Consume(q.name, "ledger-append-worker", false, false, false, false, nil)
	if err != nil {
		return err
	}
	go func() {
		defer close(q.out)
		for m := range msgs {
			var t port.AppendTask
			if err := json.Unmarshal(m.Body, &t); err != nil {
				q.log.Error("append queue: invalid payload", zap.Error(err))
				_ = m.Ack(false)
				continue
			}
			q.out <- t
			_ = m.Ack(false)
		}
	}()
	return nil
}

func (q *RabbitQueue) Close() error {
	q.closeOnce.Do(func() {
		if q.ch != nil {
			q.closeErr = q.ch.Close()
		}
		if q.conn != nil {
			if err := q.conn.Close(); q.closeErr == nil {
				q.closeErr = err
			}
		}
	})
	return q.closeErr
}
