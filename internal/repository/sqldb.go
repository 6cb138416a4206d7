package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "postgres" driver for database/sql.
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/penshort/shortlytics/migrations"
)

// OpenSQL opens a database/sql handle on the lib/pq driver. It serves the
// read-only analytics queries and the schema migrations.
func OpenSQL(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate applies all pending migrations and returns the number applied.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}

	return len(results), nil
}
