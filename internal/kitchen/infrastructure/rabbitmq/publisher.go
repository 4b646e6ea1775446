package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"

	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/domain"
)

const (
	DefaultExchange = "kitchen_topic"
	publishTimeout  = 10 * time.Second
)

// Channel is the part of *amqp091.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher sends rendered tickets to the kitchen exchange. Publishing goes
// through a circuit breaker so a dead broker fails fast instead of stalling
// the event consumer.
type Publisher struct {
	log      *slog.Logger
	ch       Channel
	exchange string
	cb       *gobreaker.CircuitBreaker[struct{}]
}

func NewPublisher(log *slog.Logger, ch Channel, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kitchen-publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Publisher{log: log, ch: ch, exchange: exchange, cb: cb}, nil
}

// RoutingKey is kitchen.ticket.<order type>, e.g. kitchen.ticket.dine_in.
func RoutingKey(t domain.Ticket) string {
	return "kitchen.ticket." + strings.ToLower(string(t.OrderType))
}

func (p *Publisher) Publish(ctx context.Context, t domain.Ticket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	key := RoutingKey(t)

	_, err = p.cb.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return struct{}{}, p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    t.RenderedAt,
			MessageId:    t.OrderID,
		})
	})
	if err != nil {
		p.log.Error("ticket publish failed", "order_id", t.OrderID, "routing_key", key, "err", err)
		return fmt.Errorf("publish ticket: %w", err)
	}
	p.log.Debug("ticket published", "order_id", t.OrderID, "routing_key", key, "size", len(body))
	return nil
}

// Dial connects to the broker, retrying with a growing pause the way a
// service does while the broker container is still starting.
func Dial(ctx context.Context, log *slog.Logger, url string) (*amqp091.Connection, *amqp091.Channel, error) {
	const attempts = 5
	var err error
	for i := range attempts {
		var conn *amqp091.Connection
		conn, err = amqp091.Dial(url)
		if err == nil {
			var ch *amqp091.Channel
			ch, err = conn.Channel()
			if err == nil {
				return conn, ch, nil
			}
			_ = conn.Close()
		}
		if i == attempts-1 {
			break
		}
		wait := time.Duration(i+1) * 2 * time.Second
		log.Warn("rabbitmq connect failed, retrying", "in", wait, "err", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", attempts, err)
}
