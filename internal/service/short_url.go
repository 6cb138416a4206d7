package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/cache"
	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/model"
	"github.com/penshort/shortlytics/internal/repository"
)

// Client-facing validation messages.
const (
	MsgAliasExists        = "Custom alias already exists"
	MsgInvalidLongURL     = "Must be a valid URL"
	MsgLongURLRequired    = "Long URL is required"
	MsgLongURLTooLong     = "Long URL is too long"
	MsgInvalidCustomAlias = "Custom alias must be between 3-20 characters and can contain letters, numbers, hyphens, and underscores"
	MsgInvalidTopic       = "Topic must be between 3 and 100 characters"
)

// AliasPattern is the accepted alias format.
var AliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

const (
	maxLongURLLength = 2048
	minTopicLength   = 3
	maxTopicLength   = 100
	aliasLength      = 6
	aliasAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	maxAliasRetries  = 5
)

// ShortURLStore persists short URLs.
type ShortURLStore interface {
	CreateShortURL(ctx context.Context, s *model.ShortURL) error
	GetShortURLByAlias(ctx context.Context, alias string) (*model.ShortURL, error)
}

// ShortURLService creates short URLs and resolves redirects.
type ShortURLService struct {
	store       ShortURLStore
	cache       *cache.Cache
	baseURL     string
	redirectTTL time.Duration
	metrics     metrics.Recorder
	logger      *slog.Logger
}

// NewShortURLService creates a new ShortURLService. redirectCache may be nil.
func NewShortURLService(store ShortURLStore, redirectCache *cache.Cache, baseURL string, redirectTTL time.Duration, recorder metrics.Recorder, logger *slog.Logger) *ShortURLService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShortURLService{
		store:       store,
		cache:       redirectCache,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		redirectTTL: redirectTTL,
		metrics:     recorder,
		logger:      logger.With("component", "service.short_url"),
	}
}

// CreateShortURLInput defines input for creating a short URL.
type CreateShortURLInput struct {
	LongURL     string
	CustomAlias string
	Topic       string
	OwnerID     string
}

// Create stores a new short URL. A taken custom alias is a conflict;
// generated aliases are retried on collision.
func (s *ShortURLService) Create(ctx context.Context, input CreateShortURLInput) (*model.ShortURL, error) {
	if input.OwnerID == "" {
		return nil, apperror.Authentication("Access denied")
	}
	if err := validateLongURL(input.LongURL); err != nil {
		return nil, err
	}
	if input.CustomAlias != "" {
		if !AliasPattern.MatchString(input.CustomAlias) {
			return nil, apperror.Validation(MsgInvalidCustomAlias)
		}
		if IsReservedAlias(input.CustomAlias) {
			return nil, apperror.Validation(MsgReservedAlias)
		}
	}

	var topic *string
	if t := strings.TrimSpace(input.Topic); t != "" {
		if len(t) < minTopicLength || len(t) > maxTopicLength {
			return nil, apperror.Validation(MsgInvalidTopic)
		}
		topic = &t
	}

	for attempt := 0; ; attempt++ {
		alias := input.CustomAlias
		if alias == "" {
			generated, err := generateRandomAlias()
			if err != nil {
				return nil, apperror.Upstream(fmt.Errorf("generate alias: %w", err))
			}
			if IsReservedAlias(generated) {
				continue
			}
			alias = generated
		}

		short := &model.ShortURL{
			ID:      ulid.Make().String(),
			Alias:   alias,
			LongURL: input.LongURL,
			Topic:   topic,
			OwnerID: input.OwnerID,
		}

		err := s.store.CreateShortURL(ctx, short)
		if err == nil {
			s.metrics.IncShortURLCreated()
			s.warmRedirectCache(ctx, short)
			return short, nil
		}

		if !errors.Is(err, repository.ErrAliasExists) {
			return nil, apperror.Upstream(fmt.Errorf("create short url: %w", err))
		}
		if input.CustomAlias != "" {
			return nil, apperror.Conflict(MsgAliasExists)
		}
		if attempt+1 >= maxAliasRetries {
			return nil, apperror.Upstream(errors.New("failed to generate unique alias after retries"))
		}
	}
}

// ShortLink returns the public URL of alias.
func (s *ShortURLService) ShortLink(alias string) string {
	return model.ShortLink(s.baseURL, alias)
}

// ResolveRedirect resolves an alias to its long URL.
// This is the hot path: cache first, then a negative cache, then the store.
func (s *ShortURLService) ResolveRedirect(ctx context.Context, alias string) (*model.ShortURL, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	if s.cache != nil {
		cached, err := s.cache.GetShortURL(ctx, alias)
		switch {
		case err == nil:
			s.metrics.IncRedirectCacheHit()
			return cached.ToShortURL(alias), nil
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.IncRedirectCacheMiss()
			if negative, _ := s.cache.IsNegativelyCached(ctx, alias); negative {
				return nil, apperror.NotFound(MsgShortURLNotFound)
			}
		default:
			// Redis error; fall through to the database.
			s.logger.Warn("redirect cache lookup failed", "alias", alias, "error", err)
		}
	}

	short, err := s.store.GetShortURLByAlias(ctx, alias)
	if err != nil {
		if errors.Is(err, repository.ErrShortURLNotFound) {
			if s.cache != nil {
				_ = s.cache.SetNegativeCache(ctx, alias)
			}
			return nil, apperror.NotFound(MsgShortURLNotFound)
		}
		return nil, apperror.Upstream(fmt.Errorf("get short url: %w", err))
	}

	s.warmRedirectCache(ctx, short)
	return short, nil
}

func (s *ShortURLService) warmRedirectCache(ctx context.Context, short *model.ShortURL) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetShortURL(ctx, short, s.redirectTTL); err != nil {
		s.logger.Warn("redirect cache store failed", "alias", short.Alias, "error", err)
	}
}

// validateLongURL accepts absolute http(s) URLs with a host.
func validateLongURL(raw string) error {
	if raw == "" {
		return apperror.Validation(MsgLongURLRequired)
	}
	if len(raw) > maxLongURLLength {
		return apperror.Validation(MsgLongURLTooLong)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return apperror.Validation(MsgInvalidLongURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperror.Validation(MsgInvalidLongURL)
	}
	if parsed.Host == "" {
		return apperror.Validation(MsgInvalidLongURL)
	}

	return nil
}

// generateRandomAlias generates a random alias using crypto/rand.
func generateRandomAlias() (string, error) {
	b := make([]byte, aliasLength)
	max := big.NewInt(int64(len(aliasAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = aliasAlphabet[n.Int64()]
	}
	return string(b), nil
}
