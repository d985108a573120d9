// Package storage persists users, portfolios and bonds in Postgres and keeps
// registry decisions in Redis.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/bond-service/internal/config"
	"github.com/bond-service/internal/logging"
)

const connectTimeout = 10 * time.Second

// PostgresDB owns the pgx pool shared by the repositories
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB opens a pool for cfg and verifies the server answers before returning
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres settings: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - small configured value
	}
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   tracelog.LoggerFunc(logQuery),
		LogLevel: tracelog.LogLevelWarn,
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres at %s:%s is unreachable: %w", cfg.Host, cfg.Port, err)
	}

	logging.WithFields(map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.Database,
		"maxConns": poolConfig.MaxConns,
	}).Info("Postgres pool ready")
	return &PostgresDB{pool: pool}, nil
}

// logQuery forwards pgx trace events to the request logger. Bound arguments
// are dropped since they carry password hashes.
func logQuery(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	delete(data, "args")
	logger := logging.FromContext(ctx).WithFields(data)
	switch level {
	case tracelog.LogLevelError:
		logger.Error(msg)
	case tracelog.LogLevelWarn:
		logger.Warn(msg)
	default:
		logger.Debug(msg)
	}
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool exposes the pool to the repositories
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping reports whether Postgres still answers; used by the health endpoint
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
