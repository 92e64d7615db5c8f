package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	ch := new(ChannelMock)
	p := NewPublisher(ch)
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	type msg struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	var published amqp.Publishing
	ch.On("Publish", Exchange, RoutingKeyUpcoming, false, false, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(4).(amqp.Publishing) }).
		Return(nil).Once()

	err := p.Publish(context.Background(), RoutingKeyUpcoming, msg{ID: 1, Name: "Netflix"})
	require.NoError(t, err)
	ch.AssertExpectations(t)

	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.Equal(t, now, published.Timestamp)
	_, err = uuid.Parse(published.MessageId)
	assert.NoError(t, err)

	var got msg
	require.NoError(t, json.Unmarshal(published.Body, &got))
	assert.Equal(t, msg{ID: 1, Name: "Netflix"}, got)
}

func TestPublisher_UniqueMessageIDs(t *testing.T) {
	ch := new(ChannelMock)
	p := NewPublisher(ch)

	ids := map[string]bool{}
	ch.On("Publish", Exchange, RoutingKeyUpcoming, false, false, mock.Anything).
		Run(func(args mock.Arguments) { ids[args.Get(4).(amqp.Publishing).MessageId] = true }).
		Return(nil)

	for range 3 {
		require.NoError(t, p.Publish(context.Background(), RoutingKeyUpcoming, "x"))
	}
	assert.Len(t, ids, 3)
}

func TestPublisher_Errors(t *testing.T) {
	t.Run("marshal error", func(t *testing.T) {
		ch := new(ChannelMock)
		err := NewPublisher(ch).Publish(context.Background(), RoutingKeyUpcoming, make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.Publish")
		ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("channel error", func(t *testing.T) {
		ch := new(ChannelMock)
		brokerErr := errors.New("channel closed")
		ch.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(brokerErr)

		err := NewPublisher(ch).Publish(context.Background(), RoutingKeyUpcoming, "x")
		assert.ErrorIs(t, err, brokerErr)
	})

	t.Run("canceled context", func(t *testing.T) {
		ch := new(ChannelMock)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewPublisher(ch).Publish(ctx, RoutingKeyUpcoming, "x")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetNotificationQueues(t *testing.T) {
	queues := GetNotificationQueues()
	require.NotEmpty(t, queues)
	assert.Equal(t, "notifications.upcoming", queues[0].QueueName)
	assert.Equal(t, RoutingKeyUpcoming, queues[0].RoutingKey)

	seen := map[string]bool{}
	for _, q := range queues {
		assert.Falsef(t, seen[q.QueueName], "duplicate queue name: %s", q.QueueName)
		seen[q.QueueName] = true
	}
}
