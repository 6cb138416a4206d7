// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	// Registers the "postgres" driver for database/sql.
	_ "github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/penshort/shortlytics/internal/model"
	"github.com/penshort/shortlytics/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls every migration back and reapplies them.
func ResetSchema(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// NewTestShortURL creates a short URL with sensible defaults.
func NewTestShortURL(t testing.TB, alias, ownerID string) *model.ShortURL {
	t.Helper()
	return &model.ShortURL{
		ID:      ulid.Make().String(),
		Alias:   alias,
		LongURL: "https://example.com/" + alias,
		OwnerID: ownerID,
	}
}

// NewTestClickEvent creates a click event for alias from ip.
func NewTestClickEvent(t testing.TB, alias, ip string) *model.ClickEvent {
	t.Helper()
	return &model.ClickEvent{
		ID:        ulid.Make().String(),
		Alias:     alias,
		IPAddress: ip,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/124.0",
		Timestamp: time.Now().UTC(),
	}
}

// UniqueAlias generates an alias that fits the 20 character limit.
// prefix should be at most 10 characters.
func UniqueAlias(prefix string) string {
	return fmt.Sprintf("%s%09d", prefix, time.Now().UnixNano()%1_000_000_000)
}
