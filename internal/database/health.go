package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by both *pgxpool.Pool and the Redis status adapter below.
type Pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

// Dependencies returns the named backing stores checked by the health endpoint.
func Dependencies(pool *pgxpool.Pool, rdb *redis.Client) map[string]Pinger {
	return map[string]Pinger{
		"postgres": pool,
		"redis":    redisPinger{rdb: rdb},
	}
}

// Check pings every dependency with a short timeout and reports "ok" or the error text.
func Check(ctx context.Context, deps map[string]Pinger) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	healthy := true
	status := make(map[string]string, len(deps))
	for name, d := range deps {
		if err := d.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	return status, healthy
}
