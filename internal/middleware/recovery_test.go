package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoverer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbose   bool
		wantStack bool
	}{
		{"production hides stack", false, false},
		{"verbose logs stack", true, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := Recoverer(logger, tt.verbose)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc123", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if got := rec.Body.String(); got != "{\"error\":\"Internal Server Error\"}\n" {
				t.Errorf("body = %q", got)
			}
			if !strings.Contains(buf.String(), `"panic":"boom"`) {
				t.Errorf("panic not logged: %s", buf.String())
			}
			if got := strings.Contains(buf.String(), `"stack"`); got != tt.wantStack {
				t.Errorf("stack logged = %v, want %v", got, tt.wantStack)
			}
		})
	}
}
