package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/domain"
	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
)

type published struct {
	exchange, key string
	msg           amqp091.Publishing
}

type fakeChannel struct {
	declared []string
	sent     []published
	err      error
	calls    int
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp091.Table) error {
	c.declared = append(c.declared, name+"/"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange, key, msg})
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func ticket() domain.Ticket {
	return domain.Ticket{
		OrderID:    "o1",
		OrderType:  orderdomain.TypeDineIn,
		SlotID:     "13:15",
		OrderDate:  "2025-03-14",
		Text:       "ticket",
		RenderedAt: time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC),
	}
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(discard(), ch, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen_topic/topic"}, ch.declared)

	require.NoError(t, p.Publish(context.Background(), ticket()))
	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "kitchen_topic", got.exchange)
	assert.Equal(t, "kitchen.ticket.dine_in", got.key)
	assert.Equal(t, amqp091.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "o1", got.msg.MessageId)

	var decoded domain.Ticket
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, ticket(), decoded)
}

func TestPublishOpensBreaker(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p, err := NewPublisher(discard(), ch, "tickets")
	require.NoError(t, err)

	for range 5 {
		require.Error(t, p.Publish(context.Background(), ticket()))
	}
	err = p.Publish(context.Background(), ticket())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, ch.calls)
}
