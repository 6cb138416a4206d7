package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AnalyticsCacheHits   map[string]uint64
	AnalyticsCacheMisses map[string]uint64
	Aggregations         map[string]uint64
	AggregationFailures  map[string]uint64
	ClicksRecorded       uint64
	ClicksFailed         uint64
	GeoLookupFailures    uint64
	RedirectCacheHits    uint64
	RedirectCacheMisses  uint64
	RedirectCount        uint64
	ShortURLsCreated     uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                   sync.Mutex
	analyticsCacheHits   map[string]uint64
	analyticsCacheMisses map[string]uint64
	aggregations         map[string]uint64
	aggregationFailures  map[string]uint64

	clicksRecorded      uint64
	clicksFailed        uint64
	geoLookupFailures   uint64
	redirectCacheHits   uint64
	redirectCacheMisses uint64
	redirectCount       uint64
	shortURLsCreated    uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		analyticsCacheHits:   make(map[string]uint64),
		analyticsCacheMisses: make(map[string]uint64),
		aggregations:         make(map[string]uint64),
		aggregationFailures:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		AnalyticsCacheHits:   copyCounts(m.analyticsCacheHits),
		AnalyticsCacheMisses: copyCounts(m.analyticsCacheMisses),
		Aggregations:         copyCounts(m.aggregations),
		AggregationFailures:  copyCounts(m.aggregationFailures),
		ClicksRecorded:       atomic.LoadUint64(&m.clicksRecorded),
		ClicksFailed:         atomic.LoadUint64(&m.clicksFailed),
		GeoLookupFailures:    atomic.LoadUint64(&m.geoLookupFailures),
		RedirectCacheHits:    atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:  atomic.LoadUint64(&m.redirectCacheMisses),
		RedirectCount:        atomic.LoadUint64(&m.redirectCount),
		ShortURLsCreated:     atomic.LoadUint64(&m.shortURLsCreated),
	}
}

func (m *InMemoryRecorder) incView(counts map[string]uint64, view string) {
	m.mu.Lock()
	counts[view]++
	m.mu.Unlock()
}

// IncAnalyticsCacheHit increments the hit counter for view.
func (m *InMemoryRecorder) IncAnalyticsCacheHit(view string) {
	m.incView(m.analyticsCacheHits, view)
}

// IncAnalyticsCacheMiss increments the miss counter for view.
func (m *InMemoryRecorder) IncAnalyticsCacheMiss(view string) {
	m.incView(m.analyticsCacheMisses, view)
}

// ObserveAggregationDuration counts completed aggregations for view.
func (m *InMemoryRecorder) ObserveAggregationDuration(view string, _ time.Duration) {
	m.incView(m.aggregations, view)
}

// IncAggregationFailure increments the failure counter for view.
func (m *InMemoryRecorder) IncAggregationFailure(view string) {
	m.incView(m.aggregationFailures, view)
}

// IncClickRecorded increments the recorded or failed click counter.
func (m *InMemoryRecorder) IncClickRecorded(status string) {
	if status == "success" {
		atomic.AddUint64(&m.clicksRecorded, 1)
		return
	}
	atomic.AddUint64(&m.clicksFailed, 1)
}

// IncGeoLookupFailure increments the geolocation failure counter.
func (m *InMemoryRecorder) IncGeoLookupFailure() {
	atomic.AddUint64(&m.geoLookupFailures, 1)
}

// IncRedirectCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncRedirectCacheHit() {
	atomic.AddUint64(&m.redirectCacheHits, 1)
}

// IncRedirectCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncRedirectCacheMiss() {
	atomic.AddUint64(&m.redirectCacheMisses, 1)
}

// ObserveRedirectDuration counts redirects.
func (m *InMemoryRecorder) ObserveRedirectDuration(_ time.Duration) {
	atomic.AddUint64(&m.redirectCount, 1)
}

// IncShortURLCreated increments the created counter.
func (m *InMemoryRecorder) IncShortURLCreated() {
	atomic.AddUint64(&m.shortURLsCreated, 1)
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
