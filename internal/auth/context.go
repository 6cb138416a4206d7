// Package auth verifies bearer tokens and enforces alias ownership.
package auth

import "context"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the context key for storing the Principal.
	principalContextKey contextKey = "principal"
)

// ContextWithPrincipal adds the principal to the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal from the context.
// Returns nil if not present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// UserIDFromContext is a convenience function to get user ID from context.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.UserID
}
