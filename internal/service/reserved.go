package service

import "strings"

// MsgReservedAlias is returned for custom aliases that collide with routes.
const MsgReservedAlias = "Custom alias is reserved"

// reservedAliases cannot be used as aliases. They are either routes served
// next to GET /{alias} or paths clients commonly probe.
var reservedAliases = map[string]bool{
	// System routes
	"api":     true,
	"healthz": true,
	"readyz":  true,
	"metrics": true,
	"docs":    true,
	"openapi": true,
	"static":  true,
	"assets":  true,

	// Fixed segments under /api/analytics
	"overall": true,

	// Auth paths
	"login":    true,
	"logout":   true,
	"auth":     true,
	"oauth":    true,
	"callback": true,
	"password": true,
	"reset":    true,
	"verify":   true,

	// Crawler and browser fetches
	"robots":     true,
	"sitemap":    true,
	"favicon":    true,
	"well-known": true,
}

// IsReservedAlias reports whether alias is reserved, ignoring case.
func IsReservedAlias(alias string) bool {
	return reservedAliases[strings.ToLower(alias)]
}
