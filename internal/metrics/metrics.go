// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Analytics views used as metric labels.
const (
	ViewAlias   = "alias"
	ViewTopic   = "topic"
	ViewOverall = "overall"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Analytics read path
	IncAnalyticsCacheHit(view string)
	IncAnalyticsCacheMiss(view string)
	ObserveAggregationDuration(view string, duration time.Duration)
	IncAggregationFailure(view string)

	// Click recording
	IncClickRecorded(status string) // status: "success" or "failed"
	IncGeoLookupFailure()

	// Redirect metrics
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
	ObserveRedirectDuration(duration time.Duration)

	// Short URL management
	IncShortURLCreated()
}
