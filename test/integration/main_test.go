//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Slot-Ordering-System/internal/database"
)

var (
	env  *Env
	pool *pgxpool.Pool
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	env, err = Setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "containers:", err)
		os.Exit(1)
	}
	if err := database.Migrate(discard(), env.PGURL); err != nil {
		env.Teardown(ctx)
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	pool, err = pgxpool.New(ctx, env.PGURL)
	if err != nil {
		env.Teardown(ctx)
		fmt.Fprintln(os.Stderr, "pool:", err)
		os.Exit(1)
	}

	code := m.Run()
	pool.Close()
	env.Teardown(ctx)
	os.Exit(code)
}
