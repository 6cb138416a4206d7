// Package service provides business logic for the application.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/penshort/shortlytics/internal/analytics"
	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/cache"
	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/model"
)

// Client-facing not found messages.
const (
	MsgShortURLNotFound = "Short URL not found"
	MsgTopicNotFound    = "Topic not found"
)

// Aggregator computes analytics aggregates.
type Aggregator interface {
	AliasAnalytics(ctx context.Context, alias string) (*model.Aggregate, error)
	TopicAnalytics(ctx context.Context, topic, ownerID string) (*model.Aggregate, error)
	OverallAnalytics(ctx context.Context, ownerID string) (*model.Aggregate, error)
}

// OwnershipChecker authorizes per-alias reads.
type OwnershipChecker interface {
	CheckAlias(ctx context.Context, ownerID, alias string) error
}

// AnalyticsRequest identifies the HTTP request an aggregate is served for.
// Path and RawQuery form the cache key together with the owner.
type AnalyticsRequest struct {
	Path     string
	RawQuery string
	OwnerID  string
}

// AnalyticsService serves aggregates through the cache. On a hit neither the
// ownership guard nor the engine runs; the key already binds the owner.
type AnalyticsService struct {
	engine  Aggregator
	cache   *cache.AnalyticsCache
	guard   OwnershipChecker
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService. analyticsCache may be nil
// to disable caching.
func NewAnalyticsService(engine Aggregator, analyticsCache *cache.AnalyticsCache, guard OwnershipChecker, recorder metrics.Recorder, logger *slog.Logger) *AnalyticsService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		engine:  engine,
		cache:   analyticsCache,
		guard:   guard,
		metrics: recorder,
		logger:  logger.With("component", "service.analytics"),
	}
}

// AliasAnalytics returns the encoded aggregate for alias.
func (s *AnalyticsService) AliasAnalytics(ctx context.Context, req AnalyticsRequest, alias string) (json.RawMessage, error) {
	return s.readThrough(ctx, metrics.ViewAlias, req, func() (*model.Aggregate, error) {
		if err := s.guard.CheckAlias(ctx, req.OwnerID, alias); err != nil {
			return nil, err
		}
		return s.engine.AliasAnalytics(ctx, alias)
	})
}

// TopicAnalytics returns the encoded aggregate for the caller's topic.
func (s *AnalyticsService) TopicAnalytics(ctx context.Context, req AnalyticsRequest, topic string) (json.RawMessage, error) {
	return s.readThrough(ctx, metrics.ViewTopic, req, func() (*model.Aggregate, error) {
		return s.engine.TopicAnalytics(ctx, topic, req.OwnerID)
	})
}

// OverallAnalytics returns the encoded aggregate over all of the caller's URLs.
func (s *AnalyticsService) OverallAnalytics(ctx context.Context, req AnalyticsRequest) (json.RawMessage, error) {
	return s.readThrough(ctx, metrics.ViewOverall, req, func() (*model.Aggregate, error) {
		return s.engine.OverallAnalytics(ctx, req.OwnerID)
	})
}

func (s *AnalyticsService) readThrough(ctx context.Context, view string, req AnalyticsRequest, compute func() (*model.Aggregate, error)) (json.RawMessage, error) {
	if req.OwnerID == "" {
		return nil, apperror.Authentication("Access denied")
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(req.Path, req.RawQuery, req.OwnerID)
		if data, ok := s.cache.Lookup(ctx, key); ok {
			s.metrics.IncAnalyticsCacheHit(view)
			return json.RawMessage(data), nil
		}
		s.metrics.IncAnalyticsCacheMiss(view)
	}

	agg, err := compute()
	if err != nil {
		return nil, translateAnalyticsError(err)
	}

	data, err := json.Marshal(agg)
	if err != nil {
		return nil, apperror.Upstream(fmt.Errorf("encode aggregate: %w", err))
	}

	if s.cache != nil {
		s.cache.Store(ctx, key, data)
	}

	return data, nil
}

func translateAnalyticsError(err error) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, analytics.ErrAliasNotFound):
		return apperror.NotFound(MsgShortURLNotFound)
	case errors.Is(err, analytics.ErrTopicNotFound):
		return apperror.NotFound(MsgTopicNotFound)
	default:
		return apperror.Upstream(err)
	}
}
