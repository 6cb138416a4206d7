package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/penshort/shortlytics/internal/auth"
	"github.com/penshort/shortlytics/internal/handler/dto"
	"github.com/penshort/shortlytics/internal/middleware"
	"github.com/penshort/shortlytics/internal/model"
	"github.com/penshort/shortlytics/internal/service"
)

// ShortURLCreator creates short URLs. *service.ShortURLService implements it.
type ShortURLCreator interface {
	Create(ctx context.Context, input service.CreateShortURLInput) (*model.ShortURL, error)
	ShortLink(alias string) string
}

// ShortenHandler handles POST /api/shorten.
type ShortenHandler struct {
	svc      ShortURLCreator
	validate *validator.Validate
	logger   *slog.Logger
}

// NewShortenHandler creates a new ShortenHandler.
func NewShortenHandler(svc ShortURLCreator, logger *slog.Logger) *ShortenHandler {
	return &ShortenHandler{
		svc:      svc,
		validate: newValidator(),
		logger:   logger.With("component", "handler.shorten"),
	}
}

// Create handles POST /api/shorten.
func (h *ShortenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: middleware.MsgBodyTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: MsgInvalidBody})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, h.logger, shortenRequestError(err))
		return
	}

	short, err := h.svc.Create(r.Context(), service.CreateShortURLInput{
		LongURL:     req.LongURL,
		CustomAlias: req.CustomAlias,
		Topic:       req.Topic,
		OwnerID:     auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("short_url_created",
		"alias", short.Alias,
		"custom_alias", req.CustomAlias != "",
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeSuccess(w, http.StatusCreated, dto.ShortenResponse{
		ShortURL:  h.svc.ShortLink(short.Alias),
		Alias:     short.Alias,
		CreatedAt: short.CreatedAt,
	})
}
