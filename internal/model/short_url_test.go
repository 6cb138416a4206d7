package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestShortLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base  string
		alias string
		want  string
	}{
		{"https://sho.rt", "abc123", "https://sho.rt/abc123"},
		{"https://sho.rt/", "abc123", "https://sho.rt/abc123"},
		{"http://localhost:8080/api/shorten", "x_y-z", "http://localhost:8080/api/shorten/x_y-z"},
	}

	for _, tt := range tests {
		if got := ShortLink(tt.base, tt.alias); got != tt.want {
			t.Errorf("ShortLink(%q, %q) = %q, want %q", tt.base, tt.alias, got, tt.want)
		}
	}
}

func TestShortURL_CachedRoundTrip(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s := &ShortURL{Alias: "abc123", LongURL: "https://example.com", OwnerID: "u1", CreatedAt: created}

	got := s.ToCached().ToShortURL("abc123")

	if got.LongURL != s.LongURL || got.OwnerID != s.OwnerID || !got.CreatedAt.Equal(created) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestNewAggregate_EncodesEmptyLists(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NewAggregate())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)

	for _, want := range []string{`"clicksByDate":[]`, `"osType":[]`, `"deviceType":[]`, `"totalClicks":0`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
	if strings.Contains(body, "totalUrls") || strings.Contains(body, "urls") {
		t.Errorf("alias aggregate should omit url fields: %s", body)
	}
}

func TestAggregate_GroupViewAlwaysHasURLs(t *testing.T) {
	t.Parallel()

	total := int64(0)
	agg := NewAggregate()
	agg.URLs = []URLStat{}
	agg.TotalURLs = &total

	b, err := json.Marshal(agg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	for _, want := range []string{`"urls":[]`, `"totalUrls":0`, `"clicksByDate":[]`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
	if strings.Count(body, `"urls"`) != 1 {
		t.Errorf("urls encoded more than once: %s", body)
	}
}
