package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter builds the producer the outbox relay dispatches through. Messages
// are partitioned by key so every event of one order stays in commit order.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
