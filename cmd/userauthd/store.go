package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/store/memory"
	"github.com/MrEthical07/userauth/store/postgres"
	"github.com/MrEthical07/userauth/store/redisstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	connectBaseDelay = 200 * time.Millisecond
	connectMaxDelay  = 5 * time.Second
)

// openStore connects the configured backend and waits until it answers a
// ping. The returned func releases the connection.
func openStore(ctx context.Context, cfg storeConfig, logger *slog.Logger) (store.UserStore, func(), error) {
	switch cfg.Driver {
	case driverMemory:
		return memory.New(), func() {}, nil

	case driverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s := redisstore.New(client, cfg.RedisPrefix)
		if err := waitReady(ctx, cfg, logger, s.Ping); err != nil {
			_ = client.Close()
			return nil, nil, oops.Code("STORE_CONNECT_FAILED").With("driver", cfg.Driver).Wrap(err)
		}
		return s, func() { _ = client.Close() }, nil

	case driverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
		}
		s := postgres.New(pool)
		if err := waitReady(ctx, cfg, logger, s.Ping); err != nil {
			pool.Close()
			return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
		}
		return s, pool.Close, nil
	}

	return nil, nil, oops.Code("CONFIG_INVALID").Errorf("unknown store.driver %q", cfg.Driver)
}

func waitReady(ctx context.Context, cfg storeConfig, logger *slog.Logger, ping func(context.Context) error) error {
	backoff := retry.WithCappedDuration(connectMaxDelay, retry.NewExponential(connectBaseDelay))
	backoff = retry.WithMaxRetries(cfg.ConnectAttempts, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			logger.WarnContext(ctx, "store not ready", "driver", cfg.Driver, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
