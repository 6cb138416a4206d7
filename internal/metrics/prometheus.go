package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortlytics"

// PrometheusRecorder implements Recorder on a private Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	analyticsCache      *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	aggregationFailures *prometheus.CounterVec
	clicksRecorded      *prometheus.CounterVec
	geoLookupFailures   prometheus.Counter
	redirectCache       *prometheus.CounterVec
	redirectDuration    prometheus.Histogram
	shortURLsCreated    prometheus.Counter
}

// NewPrometheus registers all collectors on a new registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		analyticsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_cache_requests_total",
			Help:      "Analytics cache lookups by view and result.",
		}, []string{"view", "result"}),
		aggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analytics_aggregation_duration_seconds",
			Help:      "Time spent computing an analytics aggregate.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
		aggregationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_aggregation_failures_total",
			Help:      "Aggregations aborted by a failed sub-query.",
		}, []string{"view"}),
		clicksRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events by write status.",
		}, []string{"status"}),
		geoLookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_lookup_failures_total",
			Help:      "Geolocation lookups that failed.",
		}),
		redirectCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_cache_requests_total",
			Help:      "Redirect cache lookups by result.",
		}, []string{"result"}),
		redirectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_duration_seconds",
			Help:      "Redirect handler latency.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		shortURLsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_urls_created_total",
			Help:      "Short URLs created.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.analyticsCache,
		p.aggregationDuration,
		p.aggregationFailures,
		p.clicksRecorded,
		p.geoLookupFailures,
		p.redirectCache,
		p.redirectDuration,
		p.shortURLsCreated,
	)

	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) IncAnalyticsCacheHit(view string) {
	p.analyticsCache.WithLabelValues(view, "hit").Inc()
}

func (p *PrometheusRecorder) IncAnalyticsCacheMiss(view string) {
	p.analyticsCache.WithLabelValues(view, "miss").Inc()
}

func (p *PrometheusRecorder) ObserveAggregationDuration(view string, duration time.Duration) {
	p.aggregationDuration.WithLabelValues(view).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncAggregationFailure(view string) {
	p.aggregationFailures.WithLabelValues(view).Inc()
}

func (p *PrometheusRecorder) IncClickRecorded(status string) {
	p.clicksRecorded.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncGeoLookupFailure() {
	p.geoLookupFailures.Inc()
}

func (p *PrometheusRecorder) IncRedirectCacheHit() {
	p.redirectCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncRedirectCacheMiss() {
	p.redirectCache.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) ObserveRedirectDuration(duration time.Duration) {
	p.redirectDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncShortURLCreated() {
	p.shortURLsCreated.Inc()
}
