// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// ShortURL maps an alias to its long URL. Rows are immutable once created.
type ShortURL struct {
	ID        string    `json:"id"` // ULID
	Alias     string    `json:"alias"`
	LongURL   string    `json:"longUrl"`
	Topic     *string   `json:"topic,omitempty"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ShortLink returns the public short URL for the alias under baseURL.
func (s *ShortURL) ShortLink(baseURL string) string {
	return ShortLink(baseURL, s.Alias)
}

// ShortLink joins baseURL and alias without doubling the slash.
func ShortLink(baseURL, alias string) string {
	if n := len(baseURL); n > 0 && baseURL[n-1] == '/' {
		baseURL = baseURL[:n-1]
	}
	return baseURL + "/" + alias
}

// CachedShortURL is the redirect view of a ShortURL stored as a Redis hash.
type CachedShortURL struct {
	LongURL   string `redis:"long_url"`
	OwnerID   string `redis:"owner_id"`
	CreatedAt string `redis:"created_at"` // Unix timestamp
}

// ToShortURL converts the cached hash back to a ShortURL.
func (c *CachedShortURL) ToShortURL(alias string) *ShortURL {
	s := &ShortURL{
		Alias:   alias,
		LongURL: c.LongURL,
		OwnerID: c.OwnerID,
	}
	if ts, err := strconv.ParseInt(c.CreatedAt, 10, 64); err == nil {
		s.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return s
}

// ToCached converts a ShortURL to its cached form.
func (s *ShortURL) ToCached() *CachedShortURL {
	return &CachedShortURL{
		LongURL:   s.LongURL,
		OwnerID:   s.OwnerID,
		CreatedAt: strconv.FormatInt(s.CreatedAt.Unix(), 10),
	}
}
