package cache

import (
	"strings"
	"testing"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	hash1 := hashIP(ip)
	hash2 := hashIP(ip)

	if hash1 != hash2 {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv4 localhost", "127.0.0.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash := hashIP(tt.ip)
			// hashIP uses first 8 bytes of SHA256, encoded as 16 hex chars
			if len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip1  string
		ip2  string
	}{
		{"different IPv4", "192.168.1.1", "192.168.1.2"},
		{"different last octet", "10.0.0.1", "10.0.0.2"},
		{"IPv4 vs IPv6", "127.0.0.1", "::1"},
		{"public vs private", "8.8.8.8", "192.168.1.1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash1 := hashIP(tt.ip1)
			hash2 := hashIP(tt.ip2)

			if hash1 == hash2 {
				t.Errorf("Different IPs should produce different hashes: %q and %q both produced %s", tt.ip1, tt.ip2, hash1)
			}
		})
	}
}

func TestNormalizeRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		query    string
		expected string
	}{
		{"plain", "/api/analytics/abc123", "", "/api/analytics/abc123"},
		{"trailing slash", "/api/analytics/overall/", "", "/api/analytics/overall"},
		{"dot segments", "/api/analytics/./topic/../topic/tech", "", "/api/analytics/topic/tech"},
		{"query sorted", "/api/analytics/overall", "b=2&a=1", "/api/analytics/overall?a=1&b=2"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := normalizeRequest(tt.path, tt.query); got != tt.expected {
				t.Errorf("normalizeRequest(%q, %q) = %q, want %q", tt.path, tt.query, got, tt.expected)
			}
		})
	}
}

func TestAnalyticsKey_OwnerScoped(t *testing.T) {
	t.Parallel()

	a := NewAnalyticsCache(nil, "secret", 0, nil)

	k1 := a.Key("/api/analytics/abc123", "", "user-1")
	k2 := a.Key("/api/analytics/abc123", "", "user-2")
	if k1 == k2 {
		t.Fatal("different owners must not share a cache key")
	}
	if k1 != a.Key("/api/analytics/abc123/", "", "user-1") {
		t.Error("equivalent paths should share a cache key")
	}
	if strings.Contains(k1, "user-1") {
		t.Error("cache key must not contain the raw owner id")
	}

	other := NewAnalyticsCache(nil, "another-secret", 0, nil)
	if other.Key("/api/analytics/abc123", "", "user-1") == k1 {
		t.Error("digest should depend on the secret")
	}

	long := NewAnalyticsCache(nil, strings.Repeat("s", 100), 0, nil)
	if !strings.HasPrefix(long.Key("/x", "", "u"), analyticsKeyPrefix) {
		t.Error("long secrets should still produce keys")
	}
}
