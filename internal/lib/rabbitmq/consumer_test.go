package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	deliveries chan amqp.Delivery
	err        error
}

func (f *fakeChannel) Consume(_, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, f.err
}

// ackRecorder запоминает, как было завершено каждое сообщение.
type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	requeue []uint64
	dropped []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeue = append(a.requeue, tag)
	} else {
		a.dropped = append(a.dropped, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsume_AcksAndRequeues(t *testing.T) {
	acks := &ackRecorder{}
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 3)}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: []byte("ok")}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("fail")}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: []byte("fail"), Redelivered: true}
	close(ch.deliveries)

	var handled atomic.Int32
	handler := func(_ context.Context, body []byte) error {
		handled.Add(1)
		if string(body) == "fail" {
			return errors.New("smtp down")
		}
		return nil
	}

	err := Consume(context.Background(), ch, "notifications.upcoming", 2, handler, discard())
	require.NoError(t, err)

	assert.Equal(t, int32(3), handled.Load())
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.requeue)
	assert.Equal(t, []uint64{3}, acks.dropped)
}

func TestConsume_StopsOnCancel(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, ch, "notifications.upcoming", 1, func(context.Context, []byte) error { return nil }, discard())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsume_ConsumeError(t *testing.T) {
	brokerErr := errors.New("queue not found")
	err := Consume(context.Background(), &fakeChannel{err: brokerErr}, "missing", 1, nil, discard())
	assert.ErrorIs(t, err, brokerErr)
}
