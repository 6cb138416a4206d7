package model

import "time"

// ClickEvent is one recorded redirect. Events are append-only.
type ClickEvent struct {
	ID         string    `json:"id"` // ULID (time-sortable)
	Alias      string    `json:"alias"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	OSName     *string   `json:"osName"`
	DeviceName *string   `json:"deviceName"`
	Country    *string   `json:"country"`
	Region     *string   `json:"region"`
	City       *string   `json:"city"`
	Timestamp  time.Time `json:"timestamp"`
}

// GeoLocation is the best-effort enrichment for a visitor IP.
// Empty fields mean the lookup did not provide them.
type GeoLocation struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}
