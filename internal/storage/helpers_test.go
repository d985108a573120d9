package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bond-service/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestRedis starts an in-memory Redis and wraps a client for it
func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedisCacheFromClient(client), mr
}

func testPostgresConfig() *config.PostgresConfig {
	cfg := config.Defaults().Database.Postgres
	if host := os.Getenv("POSTGRES_TEST_HOST"); host != "" {
		cfg.Host = host
	}
	if db := os.Getenv("POSTGRES_TEST_DB"); db != "" {
		cfg.Database = db
	}
	if user := os.Getenv("POSTGRES_TEST_USER"); user != "" {
		cfg.User = user
	}
	cfg.Password = os.Getenv("POSTGRES_TEST_PASSWORD")
	cfg.MaxConnections = 5
	return &cfg
}

// openTestDB connects to a migrated test database, skipping when none is reachable
func openTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	ctx := testContext(t)
	db, err := NewPostgresDB(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.PostgresURL(), "../../migrations/postgres"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	if _, err := db.Pool().Exec(ctx, `TRUNCATE bonds, portfolios, users CASCADE`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return db
}
