package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penshort/shortlytics/internal/analytics"
	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/auth"
	"github.com/penshort/shortlytics/internal/cache"
	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/model"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAggregator struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]*model.Aggregate
	err     error
}

func newFakeAggregator() *fakeAggregator {
	return &fakeAggregator{calls: map[string]int{}, results: map[string]*model.Aggregate{}}
}

func (f *fakeAggregator) record(key string) (*model.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	if agg, ok := f.results[key]; ok {
		return agg, nil
	}
	return model.NewAggregate(), nil
}

func (f *fakeAggregator) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAggregator) AliasAnalytics(_ context.Context, alias string) (*model.Aggregate, error) {
	return f.record("alias:" + alias)
}

func (f *fakeAggregator) TopicAnalytics(_ context.Context, topic, ownerID string) (*model.Aggregate, error) {
	return f.record("topic:" + topic + ":" + ownerID)
}

func (f *fakeAggregator) OverallAnalytics(_ context.Context, ownerID string) (*model.Aggregate, error) {
	return f.record("overall:" + ownerID)
}

type fakeDirectory struct {
	owned map[string][]string
	lists int
	mu    sync.Mutex
}

func (f *fakeDirectory) ListAliasesByOwner(_ context.Context, ownerID string) ([]string, error) {
	f.mu.Lock()
	f.lists++
	f.mu.Unlock()
	return f.owned[ownerID], nil
}

func (f *fakeDirectory) AliasExists(_ context.Context, alias string) (bool, error) {
	for _, aliases := range f.owned {
		for _, a := range aliases {
			if a == alias {
				return true, nil
			}
		}
	}
	return false, nil
}

func newAnalyticsCache(t *testing.T) (*cache.AnalyticsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewAnalyticsCache(cache.NewFromClient(client), "secret", 300*time.Second, discardLogger), mr
}

func TestAnalyticsService_CacheHitSkipsGuardAndEngine(t *testing.T) {
	t.Parallel()

	agg := newFakeAggregator()
	agg.results["alias:abc123"] = &model.Aggregate{TotalClicks: 3, UniqueUsers: 2,
		ClicksByDate: []model.DateCount{}, OSType: []model.OSStat{}, DeviceType: []model.DeviceStat{}}
	dir := &fakeDirectory{owned: map[string][]string{"U1": {"abc123"}}}
	ac, _ := newAnalyticsCache(t)
	rec := metrics.NewInMemory()

	svc := NewAnalyticsService(agg, ac, auth.NewGuard(dir), rec, discardLogger)
	req := AnalyticsRequest{Path: "/api/analytics/abc123", OwnerID: "U1"}

	first, err := svc.AliasAnalytics(context.Background(), req, "abc123")
	require.NoError(t, err)
	second, err := svc.AliasAnalytics(context.Background(), req, "abc123")
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "hit must be byte-identical")
	assert.Equal(t, 1, agg.count("alias:abc123"))
	assert.Equal(t, 1, dir.lists, "guard must not run on a hit")
	assert.JSONEq(t, `{"totalClicks":3,"uniqueUsers":2,"clicksByDate":[],"osType":[],"deviceType":[]}`, string(first))

	snap := rec.Snapshot()
	assert.Equal(t, uint64(1), snap.AnalyticsCacheHits[metrics.ViewAlias])
	assert.Equal(t, uint64(1), snap.AnalyticsCacheMisses[metrics.ViewAlias])
}

func TestAnalyticsService_CrossTenantIsolation(t *testing.T) {
	t.Parallel()

	agg := newFakeAggregator()
	one := int64(1)
	two := int64(2)
	agg.results["overall:U1"] = &model.Aggregate{TotalClicks: 10, TotalURLs: &one}
	agg.results["overall:U2"] = &model.Aggregate{TotalClicks: 99, TotalURLs: &two}
	ac, _ := newAnalyticsCache(t)

	svc := NewAnalyticsService(agg, ac, auth.NewGuard(&fakeDirectory{}), nil, discardLogger)
	path := "/api/analytics/overall"

	u1, err := svc.OverallAnalytics(context.Background(), AnalyticsRequest{Path: path, OwnerID: "U1"})
	require.NoError(t, err)
	u2, err := svc.OverallAnalytics(context.Background(), AnalyticsRequest{Path: path, OwnerID: "U2"})
	require.NoError(t, err)

	assert.NotEqual(t, string(u1), string(u2))
	assert.Equal(t, 1, agg.count("overall:U1"))
	assert.Equal(t, 1, agg.count("overall:U2"), "U2 must not be served U1's cached aggregate")

	var decoded model.Aggregate
	require.NoError(t, json.Unmarshal(u2, &decoded))
	assert.Equal(t, int64(99), decoded.TotalClicks)
}

func TestAnalyticsService_ForeignAlias(t *testing.T) {
	t.Parallel()

	agg := newFakeAggregator()
	dir := &fakeDirectory{owned: map[string][]string{"U1": {"abc123"}, "U2": {"xyz789"}}}
	ac, _ := newAnalyticsCache(t)

	svc := NewAnalyticsService(agg, ac, auth.NewGuard(dir), nil, discardLogger)

	_, err := svc.AliasAnalytics(context.Background(), AnalyticsRequest{Path: "/api/analytics/abc123", OwnerID: "U2"}, "abc123")
	require.Error(t, err)
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))
	assert.Zero(t, agg.count("alias:abc123"), "engine must not run for a foreign alias")
}

func TestAnalyticsService_NotFound(t *testing.T) {
	t.Parallel()

	agg := newFakeAggregator()
	agg.err = analytics.ErrAliasNotFound
	svc := NewAnalyticsService(agg, nil, auth.NewGuard(&fakeDirectory{}), nil, discardLogger)

	_, err := svc.AliasAnalytics(context.Background(), AnalyticsRequest{Path: "/api/analytics/zzz000", OwnerID: "U1"}, "zzz000")
	assert.ErrorIs(t, err, apperror.NotFound(MsgShortURLNotFound))

	agg.err = analytics.ErrTopicNotFound
	_, err = svc.TopicAnalytics(context.Background(), AnalyticsRequest{Path: "/api/analytics/topic/ghost", OwnerID: "U1"}, "ghost")
	assert.ErrorIs(t, err, apperror.NotFound(MsgTopicNotFound))
}

func TestAnalyticsService_UpstreamFailureNotCached(t *testing.T) {
	t.Parallel()

	agg := newFakeAggregator()
	agg.err = errors.New("connection reset by peer")
	ac, _ := newAnalyticsCache(t)
	svc := NewAnalyticsService(agg, ac, auth.NewGuard(&fakeDirectory{}), nil, discardLogger)
	req := AnalyticsRequest{Path: "/api/analytics/overall", OwnerID: "U1"}

	_, err := svc.OverallAnalytics(context.Background(), req)
	assert.Equal(t, apperror.KindUpstream, apperror.KindOf(err))
	assert.Equal(t, "Internal Server Error", apperror.PublicMessage(err))

	agg.err = nil
	_, err = svc.OverallAnalytics(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.count("overall:U1"), "failures must not be cached")
}

func TestAnalyticsService_CacheDown(t *testing.T) {
	t.Parallel()

	agg := newFakeAggregator()
	ac, mr := newAnalyticsCache(t)
	mr.Close()

	svc := NewAnalyticsService(agg, ac, auth.NewGuard(&fakeDirectory{}), nil, discardLogger)
	req := AnalyticsRequest{Path: "/api/analytics/overall", OwnerID: "U1"}

	for i := 0; i < 2; i++ {
		_, err := svc.OverallAnalytics(context.Background(), req)
		require.NoError(t, err, "cache failures must never surface")
	}
	assert.Equal(t, 2, agg.count("overall:U1"))
}

func TestAnalyticsService_MissingPrincipal(t *testing.T) {
	t.Parallel()

	svc := NewAnalyticsService(newFakeAggregator(), nil, auth.NewGuard(&fakeDirectory{}), nil, discardLogger)
	_, err := svc.OverallAnalytics(context.Background(), AnalyticsRequest{Path: "/api/analytics/overall"})
	assert.Equal(t, apperror.KindAuthentication, apperror.KindOf(err))
}

// The executor sees each sub-query once across two identical requests.
func TestAnalyticsService_IdempotentExecutorCalls(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`FROM short_urls s`).WithArgs("U1").WillReturnRows(
		sqlmock.NewRows([]string{"alias", "total_clicks", "unique_users"}).AddRow("abc123", "3", "2"))
	mock.ExpectQuery(`TO_CHAR`).WithArgs("U1").WillReturnRows(
		sqlmock.NewRows([]string{"date", "click_count"}).AddRow("2024-05-03", "3"))
	mock.ExpectQuery(`GROUP BY os_name`).WithArgs("U1").WillReturnRows(
		sqlmock.NewRows([]string{"os_name", "unique_users", "unique_clicks"}).AddRow("Windows", "2", "3"))
	mock.ExpectQuery(`GROUP BY device_name`).WithArgs("U1").WillReturnRows(
		sqlmock.NewRows([]string{"device_name", "unique_users", "unique_clicks"}).AddRow("Desktop", "2", "3"))

	ac, _ := newAnalyticsCache(t)
	engine := analytics.NewEngine(db, "https://sho.rt", nil)
	svc := NewAnalyticsService(engine, ac, auth.NewGuard(&fakeDirectory{}), nil, discardLogger)
	req := AnalyticsRequest{Path: "/api/analytics/overall", OwnerID: "U1"}

	first, err := svc.OverallAnalytics(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.OverallAnalytics(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	// A second round of queries would have failed against the exhausted mock.
	require.NoError(t, mock.ExpectationsWereMet())
}
