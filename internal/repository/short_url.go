package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/penshort/shortlytics/internal/model"
)

// Common errors for short URL repository operations.
var (
	ErrShortURLNotFound = errors.New("short url not found")
	ErrAliasExists      = errors.New("alias already exists")
)

// CreateShortURL inserts s inside one transaction. The alias check and the
// insert are serialized per alias with a transaction-scoped advisory lock, and
// a unique violation from a racing writer is still reported as ErrAliasExists.
// On success s.CreatedAt is set from the database.
func (r *Repository) CreateShortURL(ctx context.Context, s *model.ShortURL) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.Alias); err != nil {
		return fmt.Errorf("failed to lock alias: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM short_urls WHERE alias = $1)`, s.Alias).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check alias: %w", err)
	}
	if exists {
		return ErrAliasExists
	}

	query := `
		INSERT INTO short_urls (id, alias, long_url, topic, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query, s.ID, s.Alias, s.LongURL, nullableString(s.Topic), s.OwnerID).Scan(&s.CreatedAt)
	if err != nil {
		if hasPgCode(err, pgUniqueViolation) {
			return ErrAliasExists
		}
		return fmt.Errorf("failed to create short url: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if hasPgCode(err, pgUniqueViolation) {
			return ErrAliasExists
		}
		return fmt.Errorf("failed to commit short url: %w", err)
	}

	return nil
}

// GetShortURLByAlias retrieves a short URL by alias.
// This is the hot path for redirects.
func (r *Repository) GetShortURLByAlias(ctx context.Context, alias string) (*model.ShortURL, error) {
	query := `
		SELECT id, alias, long_url, topic, user_id, created_at
		FROM short_urls
		WHERE alias = $1
	`

	var s model.ShortURL
	err := r.pool.QueryRow(ctx, query, alias).Scan(&s.ID, &s.Alias, &s.LongURL, &s.Topic, &s.OwnerID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShortURLNotFound
		}
		return nil, fmt.Errorf("failed to get short url by alias: %w", err)
	}

	return &s, nil
}

// AliasExists reports whether any short URL uses alias.
func (r *Repository) AliasExists(ctx context.Context, alias string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM short_urls WHERE alias = $1)`, alias).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check alias: %w", err)
	}
	return exists, nil
}

// ListAliasesByOwner returns every alias owned by ownerID.
func (r *Repository) ListAliasesByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT alias FROM short_urls WHERE user_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}

	aliases, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan aliases: %w", err)
	}

	return aliases, nil
}
