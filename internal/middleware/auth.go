package middleware

import (
	"log/slog"
	"net/http"

	"github.com/penshort/shortlytics/internal/auth"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier *auth.TokenVerifier
}

// Authenticate returns a middleware that verifies the bearer access token
// and injects the principal into the request context.
// Every failure gets the same 401 body.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeError(w, http.StatusUnauthorized, MsgAccessDenied)
				return
			}

			principal, err := cfg.Verifier.Verify(token)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_token")
				writeError(w, http.StatusUnauthorized, MsgAccessDenied)
				return
			}

			setLogUserID(r.Context(), principal.UserID)

			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", getClientIP(r)),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}
