// Package analytics records click events and computes click analytics.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/model"
)

// Errors returned when the aggregation target does not exist.
var (
	ErrAliasNotFound = errors.New("alias not found")
	ErrTopicNotFound = errors.New("topic not found")
)

// Querier runs read-only queries. *sql.DB satisfies it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Engine computes analytics aggregates from the url_analytics table.
// The sub-queries of one view run concurrently and are joined before the
// result is assembled; any failure fails the whole view.
type Engine struct {
	db      Querier
	baseURL string
	metrics metrics.Recorder
}

// NewEngine creates an aggregation engine. baseURL prefixes the shortUrl of
// topic and overall URL lines.
func NewEngine(db Querier, baseURL string, recorder metrics.Recorder) *Engine {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Engine{db: db, baseURL: baseURL, metrics: recorder}
}

// AliasAnalytics returns the aggregate for one alias, or ErrAliasNotFound
// when no short URL uses it.
func (e *Engine) AliasAnalytics(ctx context.Context, alias string) (*model.Aggregate, error) {
	start := time.Now()

	exists, err := e.exists(ctx, queryAliasExists, alias)
	if err != nil {
		e.metrics.IncAggregationFailure(metrics.ViewAlias)
		return nil, fmt.Errorf("check alias: %w", err)
	}
	if !exists {
		return nil, ErrAliasNotFound
	}

	agg := model.NewAggregate()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := e.count(gctx, queryAliasTotalClicks, alias)
		if err != nil {
			return fmt.Errorf("total clicks: %w", err)
		}
		agg.TotalClicks = n
		return nil
	})
	g.Go(func() error {
		n, err := e.count(gctx, queryAliasUniqueUsers, alias)
		if err != nil {
			return fmt.Errorf("unique users: %w", err)
		}
		agg.UniqueUsers = n
		return nil
	})
	g.Go(func() error {
		dates, err := e.clicksByDate(gctx, queryAliasClicksByDate, alias)
		if err != nil {
			return fmt.Errorf("clicks by date: %w", err)
		}
		agg.ClicksByDate = dates
		return nil
	})
	g.Go(func() error {
		groups, err := e.breakdown(gctx, queryAliasOSType, alias)
		if err != nil {
			return fmt.Errorf("os breakdown: %w", err)
		}
		agg.OSType = toOSStats(groups)
		return nil
	})
	g.Go(func() error {
		groups, err := e.breakdown(gctx, queryAliasDeviceType, alias)
		if err != nil {
			return fmt.Errorf("device breakdown: %w", err)
		}
		agg.DeviceType = toDeviceStats(groups)
		return nil
	})

	if err := g.Wait(); err != nil {
		e.metrics.IncAggregationFailure(metrics.ViewAlias)
		return nil, err
	}

	e.metrics.ObserveAggregationDuration(metrics.ViewAlias, time.Since(start))
	return agg, nil
}

// TopicAnalytics returns the aggregate for the owner's aliases under topic,
// or ErrTopicNotFound when the owner has no short URL with that topic.
func (e *Engine) TopicAnalytics(ctx context.Context, topic, ownerID string) (*model.Aggregate, error) {
	start := time.Now()

	agg, err := e.groupView(ctx, viewQueries{
		urls:         queryTopicURLs,
		clicksByDate: queryTopicClicksByDate,
		osType:       queryTopicOSType,
		deviceType:   queryTopicDeviceType,
	}, topic, ownerID)
	if err != nil {
		e.metrics.IncAggregationFailure(metrics.ViewTopic)
		return nil, err
	}
	if len(agg.URLs) == 0 {
		return nil, ErrTopicNotFound
	}

	e.metrics.ObserveAggregationDuration(metrics.ViewTopic, time.Since(start))
	return agg, nil
}

// OverallAnalytics returns the aggregate over every alias owned by ownerID.
// An owner without short URLs gets a zeroed aggregate.
func (e *Engine) OverallAnalytics(ctx context.Context, ownerID string) (*model.Aggregate, error) {
	start := time.Now()

	agg, err := e.groupView(ctx, viewQueries{
		urls:         queryOwnerURLs,
		clicksByDate: queryOwnerClicksByDate,
		osType:       queryOwnerOSType,
		deviceType:   queryOwnerDeviceType,
	}, ownerID)
	if err != nil {
		e.metrics.IncAggregationFailure(metrics.ViewOverall)
		return nil, err
	}

	totalURLs := int64(len(agg.URLs))
	agg.TotalURLs = &totalURLs

	e.metrics.ObserveAggregationDuration(metrics.ViewOverall, time.Since(start))
	return agg, nil
}

type viewQueries struct {
	urls         string
	clicksByDate string
	osType       string
	deviceType   string
}

// groupView runs the four sub-queries shared by the topic and overall views.
// Totals are the sums of the per-alias lines.
func (e *Engine) groupView(ctx context.Context, q viewQueries, args ...any) (*model.Aggregate, error) {
	agg := model.NewAggregate()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lines, err := e.urlStats(gctx, q.urls, args...)
		if err != nil {
			return fmt.Errorf("url stats: %w", err)
		}
		agg.URLs = lines
		for _, line := range lines {
			agg.TotalClicks += line.TotalClicks
			agg.UniqueUsers += line.UniqueUsers
		}
		return nil
	})
	g.Go(func() error {
		dates, err := e.clicksByDate(gctx, q.clicksByDate, args...)
		if err != nil {
			return fmt.Errorf("clicks by date: %w", err)
		}
		agg.ClicksByDate = dates
		return nil
	})
	g.Go(func() error {
		groups, err := e.breakdown(gctx, q.osType, args...)
		if err != nil {
			return fmt.Errorf("os breakdown: %w", err)
		}
		agg.OSType = toOSStats(groups)
		return nil
	})
	g.Go(func() error {
		groups, err := e.breakdown(gctx, q.deviceType, args...)
		if err != nil {
			return fmt.Errorf("device breakdown: %w", err)
		}
		agg.DeviceType = toDeviceStats(groups)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return agg, nil
}

func (e *Engine) exists(ctx context.Context, query string, args ...any) (bool, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var found bool
	if rows.Next() {
		if err := rows.Scan(&found); err != nil {
			return false, err
		}
	}
	return found, rows.Err()
}

// count reads a single text count. No row means 0.
func (e *Engine) count(ctx context.Context, query string, args ...any) (int64, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return 0, err
		}
		if n, err = parseCount(raw); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func (e *Engine) clicksByDate(ctx context.Context, query string, args ...any) ([]model.DateCount, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := []model.DateCount{}
	for rows.Next() {
		var (
			date string
			raw  sql.NullString
		)
		if err := rows.Scan(&date, &raw); err != nil {
			return nil, err
		}
		n, err := parseCount(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, model.DateCount{Date: date, Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// ISO dates sort lexically.
	sort.SliceStable(dates, func(i, j int) bool { return dates[i].Date > dates[j].Date })
	return dates, nil
}

type groupCount struct {
	name   *string
	users  int64
	clicks int64
}

func (e *Engine) breakdown(ctx context.Context, query string, args ...any) ([]groupCount, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []groupCount
	for rows.Next() {
		var name, users, clicks sql.NullString
		if err := rows.Scan(&name, &users, &clicks); err != nil {
			return nil, err
		}
		gc := groupCount{}
		if name.Valid {
			gc.name = &name.String
		}
		if gc.users, err = parseCount(users); err != nil {
			return nil, err
		}
		if gc.clicks, err = parseCount(clicks); err != nil {
			return nil, err
		}
		groups = append(groups, gc)
	}
	return groups, rows.Err()
}

func (e *Engine) urlStats(ctx context.Context, query string, args ...any) ([]model.URLStat, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []model.URLStat{}
	for rows.Next() {
		var (
			alias         string
			total, unique sql.NullString
		)
		if err := rows.Scan(&alias, &total, &unique); err != nil {
			return nil, err
		}
		line := model.URLStat{ShortURL: model.ShortLink(e.baseURL, alias)}
		if line.TotalClicks, err = parseCount(total); err != nil {
			return nil, err
		}
		if line.UniqueUsers, err = parseCount(unique); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// parseCount converts a text count to an integer. NULL and empty mean 0.
func parseCount(raw sql.NullString) (int64, error) {
	s := strings.TrimSpace(raw.String)
	if !raw.Valid || s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", s, err)
	}
	return n, nil
}

func toOSStats(groups []groupCount) []model.OSStat {
	out := make([]model.OSStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.OSStat{OSName: g.name, UniqueUsers: g.users, UniqueClicks: g.clicks})
	}
	return out
}

func toDeviceStats(groups []groupCount) []model.DeviceStat {
	out := make([]model.DeviceStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.DeviceStat{DeviceName: g.name, UniqueUsers: g.users, UniqueClicks: g.clicks})
	}
	return out
}
