// Package database provides the PostgreSQL connection pool shared by all
// stores. Schema management lives in the db package; this package only
// dials, tunes, and health-checks the pool.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool tuning for a single-node chat server. The write path holds at most
// one connection per in-flight request; vector searches are the only
// long-running queries.
const (
	maxConns          = 10
	minConns          = 2
	maxConnLifetime   = 30 * time.Minute
	maxConnIdleTime   = 5 * time.Minute
	healthCheckPeriod = 1 * time.Minute

	// pingTimeout bounds the startup connectivity check so a wrong host
	// fails fast instead of hanging on TCP timeouts.
	pingTimeout = 5 * time.Second
)

// Connect creates a PostgreSQL connection pool and verifies connectivity
// with a bounded ping. The caller owns the pool and must Close it on
// shutdown.
//
// dsn is a key=value connection string (see config.PostgresConnectionString).
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.MaxConnLifetime = maxConnLifetime
	poolCfg.MaxConnIdleTime = maxConnIdleTime
	poolCfg.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
