package repository

import (
	"context"
	"fmt"

	"github.com/penshort/shortlytics/internal/model"
)

// InsertClickEvent appends one click event. A missing alias is reported as
// ErrShortURLNotFound.
func (r *Repository) InsertClickEvent(ctx context.Context, event *model.ClickEvent) error {
	query := `
		INSERT INTO url_analytics (
			id, alias, ip_address, user_agent, os_name, device_name,
			country, region, city, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Alias,
		event.IPAddress,
		event.UserAgent,
		nullableString(event.OSName),
		nullableString(event.DeviceName),
		nullableString(event.Country),
		nullableString(event.Region),
		nullableString(event.City),
		event.Timestamp,
	)
	if err != nil {
		if hasPgCode(err, pgForeignKeyViolation) {
			return ErrShortURLNotFound
		}
		return fmt.Errorf("failed to insert click event: %w", err)
	}

	return nil
}
