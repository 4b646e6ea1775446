package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// EventKey keys a business event by its own id, independent of transport.
func (s *Store) EventKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

// Seen claims key and reports whether someone claimed it before.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget drops a claim so a redelivery of the same event is processed again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
