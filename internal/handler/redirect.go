package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/penshort/shortlytics/internal/analytics"
	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/middleware"
	"github.com/penshort/shortlytics/internal/model"
)

// RedirectResolver resolves aliases. *service.ShortURLService implements it.
type RedirectResolver interface {
	ResolveRedirect(ctx context.Context, alias string) (*model.ShortURL, error)
}

// ClickRecorder records clicks off the request path.
// *analytics.Recorder implements it.
type ClickRecorder interface {
	RecordAsync(click analytics.Click)
}

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	svc      RedirectResolver
	recorder ClickRecorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler. recorder may be nil.
func NewRedirectHandler(svc RedirectResolver, recorder ClickRecorder, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		svc:      svc,
		recorder: recorder,
		validate: newValidator(),
		logger:   logger.With("component", "handler.redirect"),
	}
}

// Redirect handles GET /{alias} and GET /api/shorten/{alias}.
// The click is recorded after the redirect decision and never delays it.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if err := validateAlias(h.validate, alias); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	start := time.Now()
	short, err := h.svc.ResolveRedirect(r.Context(), alias)
	duration := time.Since(start)

	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			h.logger.Info("redirect_not_found",
				"alias", alias,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
		}
		w.Header().Set("Cache-Control", "private, max-age=0")
		writeError(w, r, h.logger, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordAsync(analytics.Click{
			Alias:     alias,
			IPAddress: middleware.ClientIP(r),
			UserAgent: r.UserAgent(),
			At:        time.Now(),
		})
	}

	h.logger.Debug("redirect_success",
		"alias", alias,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, short.LongURL, http.StatusTemporaryRedirect)
}
