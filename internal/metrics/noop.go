package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncAnalyticsCacheHit(view string)                              {}
func (n *NoopRecorder) IncAnalyticsCacheMiss(view string)                             {}
func (n *NoopRecorder) ObserveAggregationDuration(view string, duration time.Duration) {}
func (n *NoopRecorder) IncAggregationFailure(view string)                             {}
func (n *NoopRecorder) IncClickRecorded(status string)                                {}
func (n *NoopRecorder) IncGeoLookupFailure()                                          {}
func (n *NoopRecorder) IncRedirectCacheHit()                                          {}
func (n *NoopRecorder) IncRedirectCacheMiss()                                         {}
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration)                {}
func (n *NoopRecorder) IncShortURLCreated()                                           {}
