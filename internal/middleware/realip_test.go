package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseTrustedProxies(t *testing.T) {
	t.Parallel()

	prefixes, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "192.0.2.1", "", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prefixes) != 3 {
		t.Fatalf("len = %d, want 3", len(prefixes))
	}
	if got := prefixes[1].String(); got != "192.0.2.1/32" {
		t.Errorf("single address = %q, want 192.0.2.1/32", got)
	}

	for _, bad := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := ParseTrustedProxies([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRealIP(t *testing.T) {
	t.Parallel()

	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		trusted    bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"untrusted peer spoofing forwarded for", true, "198.51.100.9:4000", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.9"},
		{"untrusted peer spoofing real ip", true, "198.51.100.9:4000", map[string]string{"X-Real-IP": "203.0.113.7"}, "198.51.100.9"},
		{"trusted proxy forwarded for", true, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"trusted proxy real ip", true, "10.0.0.5:4000", map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
		{"trusted proxy invalid value", true, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "unknown"}, "10.0.0.5"},
		{"no proxies configured", false, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.5"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			})

			proxies := trusted
			if !tt.trusted {
				proxies = nil
			}
			req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			RealIP(proxies)(next).ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("client ip = %q, want %q", got, tt.want)
			}
		})
	}
}
