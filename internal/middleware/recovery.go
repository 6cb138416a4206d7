package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer is a middleware that recovers from panics.
// It logs the panic and returns a 500 with the standard error body.
// The stack trace is only logged when verbose is set.
func Recoverer(logger *slog.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				attrs := []any{
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
				}
				if verbose {
					attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				}
				logger.Error("panic recovered", attrs...)

				writeError(w, http.StatusInternalServerError, MsgInternalError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
