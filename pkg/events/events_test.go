package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/example/ecomshop/pkg/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	event := New(OrderPlaced, "order-1", "user-1", map[string]interface{}{"total_price": 250})

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "shop.events" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "order-1" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := msg.Value.Encode()
		var got Event
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got.Type != OrderPlaced || got.UserID != "user-1" {
			return errors.New("unexpected payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherFromProducer(producer, "shop.events")
	require.NoError(t, p.Publish(context.Background(), event))

	err := p.Publish(context.Background(), event)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, p.Close())
}

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failWith  error
	closed    bool
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitMQPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newRabbitMQPublisher(ch, "shop_events")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop_events"}, ch.declared)

	event := New(ProductCreated, "product-1", "", nil)
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, ch.published, 1)
	assert.Equal(t, []string{"shop_events"}, ch.keys)
	assert.Equal(t, ProductCreated, ch.published[0].Type)
	assert.Equal(t, "application/json", ch.published[0].ContentType)

	var got Event
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &got))
	assert.Equal(t, "product-1", got.EntityID)

	ch.failWith = amqp.ErrClosed
	assert.ErrorIs(t, p.Publish(context.Background(), event), amqp.ErrClosed)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(&config.EventsConfig{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{}))

	_, err = NewPublisher(&config.EventsConfig{Driver: "carrier-pigeon"})
	assert.Error(t, err)
}
