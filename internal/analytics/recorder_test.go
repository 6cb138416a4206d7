package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penshort/shortlytics/internal/geo"
	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/model"
	"github.com/penshort/shortlytics/internal/repository"
)

type fakeClickStore struct {
	mu       sync.Mutex
	events   []*model.ClickEvent
	failures int
	err      error
	calls    int
	block    chan struct{}
}

func (f *fakeClickStore) InsertClickEvent(ctx context.Context, event *model.ClickEvent) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("transient failure")
	}
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeClickStore) snapshot() ([]*model.ClickEvent, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ClickEvent(nil), f.events...), f.calls
}

type fakeGeo struct {
	loc *model.GeoLocation
	err error
}

func (f fakeGeo) Lookup(context.Context, string) (*model.GeoLocation, error) {
	return f.loc, f.err
}

func newTestRecorder(store ClickStore, locator GeoLocator) (*Recorder, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecorder(store, locator, logger, rec, RecorderConfig{
		Timeout:    time.Second,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
	}), rec
}

const chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func TestRecorder_Record(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{}
	r, rec := newTestRecorder(store, fakeGeo{loc: &model.GeoLocation{Country: "US", Region: "California"}})

	err := r.Record(context.Background(), Click{Alias: "abc123", IPAddress: "8.8.8.8", UserAgent: chromeWindows})
	require.NoError(t, err)

	events, _ := store.snapshot()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "abc123", e.Alias)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	require.NotNil(t, e.Country)
	assert.Equal(t, "US", *e.Country)
	require.NotNil(t, e.Region)
	assert.Nil(t, e.City, "empty geo fields are stored as NULL")
	require.NotNil(t, e.OSName)
	assert.Equal(t, "Windows", *e.OSName)
	require.NotNil(t, e.DeviceName)
	assert.Equal(t, "Desktop", *e.DeviceName)

	assert.Equal(t, uint64(1), rec.Snapshot().ClicksRecorded)
}

func TestRecorder_Record_GeoFailure(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{}
	r, rec := newTestRecorder(store, fakeGeo{err: errors.New("ipinfo down")})

	require.NoError(t, r.Record(context.Background(), Click{Alias: "abc123", IPAddress: "8.8.8.8"}))

	events, _ := store.snapshot()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Country)
	assert.Nil(t, events[0].Region)
	assert.Nil(t, events[0].City)
	assert.Equal(t, uint64(1), rec.Snapshot().GeoLookupFailures)
}

func TestRecorder_Record_PrivateAddressNotCounted(t *testing.T) {
	t.Parallel()

	r, rec := newTestRecorder(&fakeClickStore{}, fakeGeo{err: geo.ErrPrivateAddress})

	require.NoError(t, r.Record(context.Background(), Click{Alias: "abc123", IPAddress: "10.0.0.1"}))
	assert.Zero(t, rec.Snapshot().GeoLookupFailures)
}

func TestRecorder_Record_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{failures: 2}
	r, _ := newTestRecorder(store, nil)

	require.NoError(t, r.Record(context.Background(), Click{Alias: "abc123", IPAddress: "8.8.8.8"}))

	events, calls := store.snapshot()
	assert.Len(t, events, 1)
	assert.Equal(t, 3, calls)
}

func TestRecorder_Record_MissingAliasNotRetried(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{err: repository.ErrShortURLNotFound}
	r, rec := newTestRecorder(store, nil)

	err := r.Record(context.Background(), Click{Alias: "gone01", IPAddress: "8.8.8.8"})
	require.ErrorIs(t, err, repository.ErrShortURLNotFound)

	_, calls := store.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), rec.Snapshot().ClicksFailed)
}

func TestRecorder_Record_InvalidClick(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{}
	r, _ := newTestRecorder(store, nil)

	err := r.Record(context.Background(), Click{Alias: "abc123", IPAddress: "not-an-ip"})
	require.Error(t, err)

	_, calls := store.snapshot()
	assert.Zero(t, calls)
}

func TestRecorder_RecordAsyncAndShutdown(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{block: make(chan struct{})}
	r, rec := newTestRecorder(store, nil)

	r.RecordAsync(Click{Alias: "abc123", IPAddress: "8.8.8.8"})
	r.RecordAsync(Click{Alias: "abc123", IPAddress: "8.8.4.4"})

	// Nothing is written while the store is blocked.
	events, _ := store.snapshot()
	assert.Empty(t, events)

	close(store.block)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	events, _ = store.snapshot()
	assert.Len(t, events, 2)

	// Clicks after shutdown are dropped.
	r.RecordAsync(Click{Alias: "abc123", IPAddress: "8.8.8.8"})
	events, _ = store.snapshot()
	assert.Len(t, events, 2)
	assert.Equal(t, uint64(1), rec.Snapshot().ClicksFailed)
}

func TestRecorder_ShutdownTimeout(t *testing.T) {
	t.Parallel()

	store := &fakeClickStore{block: make(chan struct{})}
	r, _ := newTestRecorder(store, nil)
	t.Cleanup(func() { close(store.block) })

	r.RecordAsync(Click{Alias: "abc123", IPAddress: "8.8.8.8"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)
}
