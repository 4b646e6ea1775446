//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Env is one Postgres and one Kafka broker shared by the integration suite.
type Env struct {
	PG    *postgres.PostgresContainer
	Kafka *kafka.KafkaContainer
	PGURL string
	KAddr []string
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("slots"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		return nil, err
	}
	env := &Env{PG: pgC}

	env.PGURL, err = pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	env.Kafka, err = kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("slots-test"),
	)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	env.KAddr, err = env.Kafka.Brokers(ctx)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	if e.Kafka != nil {
		_ = e.Kafka.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
}
