package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/tracing"
)

type Handler interface {
	HandleStatusChanged(ctx context.Context, ev orderdomain.OrderStatusChanged) (bool, error)
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	DefaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

var errMalformed = errors.New("malformed order event")

// Consumer follows the order event stream and hands status changes to the
// kitchen. Other event types on the topic are committed and skipped. A
// failed ticket is retried in place; the offset is only committed once the
// ticket is out or can never be printed.
type Consumer struct {
	log     *slog.Logger
	reader  MessageReader
	svc     Handler
	idem    Deduper
	backoff time.Duration
	tracer  trace.Tracer
}

type Option func(*Consumer)

func WithRetryBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc Handler, idem Deduper, opts ...Option) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return NewConsumerWithReader(log, r, svc, idem, opts...)
}

func NewConsumerWithReader(log *slog.Logger, r MessageReader, svc Handler, idem Deduper, opts ...Option) *Consumer {
	c := &Consumer{
		log:     log,
		reader:  r,
		svc:     svc,
		idem:    idem,
		backoff: DefaultRetryBackoff,
		tracer:  otel.Tracer("kitchen-consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !c.process(ctx, msg) {
			c.log.Info("stopped before ticket was printed, leaving message uncommitted", "offset", msg.Offset)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// process handles msg until it succeeds or fails for good. It returns false
// when ctx ends first.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		if errors.Is(err, errMalformed) || errors.Is(err, orderdomain.ErrOrderNotFound) {
			c.log.Error("order event dropped", "offset", msg.Offset, "err", err)
			return true
		}
		c.log.Warn("kitchen ticket failed, retrying", "offset", msg.Offset, "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	if tracing.HeaderValue(msg.Headers, "event_type") != orderdomain.EventOrderStatusChanged {
		return nil
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		// Printing a ticket twice is better than not printing it.
		c.log.Warn("idempotency check failed, processing anyway", "key", key, "err", err)
	} else if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderStatusChanged")
	defer span.End()

	var ev orderdomain.OrderStatusChanged
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	printed, err := c.svc.HandleStatusChanged(msgCtx, ev)
	if err != nil {
		span.RecordError(err)
		if ferr := c.idem.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			c.log.Warn("idempotency release failed", "key", key, "err", ferr)
		}
		return fmt.Errorf("order %s: %w", ev.OrderID, err)
	}
	if printed {
		c.log.Info("order status change consumed", "order_id", ev.OrderID, "to", ev.To)
	}
	return nil
}
