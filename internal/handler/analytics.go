package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/auth"
	"github.com/penshort/shortlytics/internal/service"
)

// AnalyticsReader serves analytics views as encoded aggregates.
// *service.AnalyticsService implements it.
type AnalyticsReader interface {
	AliasAnalytics(ctx context.Context, req service.AnalyticsRequest, alias string) (json.RawMessage, error)
	TopicAnalytics(ctx context.Context, req service.AnalyticsRequest, topic string) (json.RawMessage, error)
	OverallAnalytics(ctx context.Context, req service.AnalyticsRequest) (json.RawMessage, error)
}

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	svc      AnalyticsReader
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc AnalyticsReader, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc:      svc,
		validate: newValidator(),
		logger:   logger.With("component", "handler.analytics"),
	}
}

// GetAliasAnalytics handles GET /api/analytics/{alias}.
func (h *AnalyticsHandler) GetAliasAnalytics(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if err := validateAlias(h.validate, alias); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data, err := h.svc.AliasAnalytics(r.Context(), analyticsRequest(r), alias)
	h.respond(w, r, data, err)
}

// GetTopicAnalytics handles GET /api/analytics/topic/{topic}.
func (h *AnalyticsHandler) GetTopicAnalytics(w http.ResponseWriter, r *http.Request) {
	topic, err := topicParam(r)
	if err != nil {
		writeError(w, r, h.logger, apperror.Validation(service.MsgInvalidTopic))
		return
	}
	if err := validateTopic(h.validate, topic); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	data, err := h.svc.TopicAnalytics(r.Context(), analyticsRequest(r), topic)
	h.respond(w, r, data, err)
}

// GetOverallAnalytics handles GET /api/analytics/overall.
func (h *AnalyticsHandler) GetOverallAnalytics(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.OverallAnalytics(r.Context(), analyticsRequest(r))
	h.respond(w, r, data, err)
}

func (h *AnalyticsHandler) respond(w http.ResponseWriter, r *http.Request, data json.RawMessage, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, data)
}

// analyticsRequest describes the request for cache keying and ownership.
// topicParam returns the decoded topic segment. chi matches on RawPath only
// when the request carried escapes that Path cannot represent; otherwise the
// segment is already decoded and must not be unescaped again.
func topicParam(r *http.Request) (string, error) {
	topic := chi.URLParam(r, "topic")
	if r.URL.RawPath == "" {
		return topic, nil
	}
	return url.PathUnescape(topic)
}

func analyticsRequest(r *http.Request) service.AnalyticsRequest {
	return service.AnalyticsRequest{
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		OwnerID:  auth.UserIDFromContext(r.Context()),
	}
}
