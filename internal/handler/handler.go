// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/handler/dto"
	"github.com/penshort/shortlytics/internal/middleware"
)

// Handler serves the fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "resource not found"})
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "method not allowed"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes data inside the success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.SuccessResponse{Message: dto.SuccessMessage, Data: data})
}

// writeError maps err to its status and client message. Upstream errors
// are logged with the request id and never shown to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	if kind == apperror.KindUpstream {
		logger.Error("request failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, dto.ErrorResponse{Error: apperror.PublicMessage(err)})
}
