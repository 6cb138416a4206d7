package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/penshort/shortlytics/internal/apperror"
)

// MsgForbiddenAlias is returned when a caller asks for another owner's alias.
const MsgForbiddenAlias = "Forbidden. You do not have permission to access this URL's analytics."

// AliasDirectory answers ownership questions about aliases.
type AliasDirectory interface {
	ListAliasesByOwner(ctx context.Context, ownerID string) ([]string, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
}

// Guard checks that a principal owns the alias it asks about. Ownership is
// always read from the store, never from the request.
type Guard struct {
	dir AliasDirectory
}

// NewGuard creates an ownership guard.
func NewGuard(dir AliasDirectory) *Guard {
	return &Guard{dir: dir}
}

// CheckAlias returns nil when ownerID owns alias or when alias does not exist
// at all, so the caller can report not found. An alias owned by someone else
// yields an authorization error.
func (g *Guard) CheckAlias(ctx context.Context, ownerID, alias string) error {
	if ownerID == "" {
		return apperror.Authentication("Access denied")
	}

	owned, err := g.dir.ListAliasesByOwner(ctx, ownerID)
	if err != nil {
		return apperror.Upstream(fmt.Errorf("list aliases: %w", err))
	}
	if slices.Contains(owned, alias) {
		return nil
	}

	exists, err := g.dir.AliasExists(ctx, alias)
	if err != nil {
		return apperror.Upstream(fmt.Errorf("check alias: %w", err))
	}
	if exists {
		return apperror.Authorization(MsgForbiddenAlias)
	}
	return nil
}
