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
	"github.com/dmehra2102/Slot-Ordering-System/internal/payment/application"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/tracing"
)

type Confirmer interface {
	Confirm(ctx context.Context, pc orderdomain.PaymentConfirmation) error
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

var errMalformed = errors.New("malformed payment event")

// Consumer reads gateway confirmations from the payment topic. A message is
// committed once it is applied or can never be applied; transient failures
// are retried in place so the offset does not move past them.
type Consumer struct {
	log     *slog.Logger
	reader  MessageReader
	svc     Confirmer
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

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc Confirmer, opts ...Option) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return NewConsumerWithReader(log, r, svc, opts...)
}

func NewConsumerWithReader(log *slog.Logger, r MessageReader, svc Confirmer, opts ...Option) *Consumer {
	c := &Consumer{
		log:     log,
		reader:  r,
		svc:     svc,
		backoff: DefaultRetryBackoff,
		tracer:  otel.Tracer("payment-consumer"),
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
			c.log.Info("stopped before message was applied, leaving it uncommitted", "offset", msg.Offset)
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
		if errors.Is(err, errMalformed) || !application.Retryable(err) {
			c.log.Error("payment event dropped", "offset", msg.Offset, "err", err)
			return true
		}
		c.log.Warn("payment confirmation failed, retrying", "offset", msg.Offset, "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentConfirmed")
	defer span.End()

	var pc orderdomain.PaymentConfirmation
	if err := json.Unmarshal(msg.Value, &pc); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := c.svc.Confirm(msgCtx, pc); err != nil {
		span.RecordError(err)
		return err
	}
	c.log.Info("payment confirmation consumed", "order_id", pc.OrderID, "event_id", pc.EventID)
	return nil
}
