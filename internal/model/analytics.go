package model

import "encoding/json"

// Aggregate is the computed analytics summary for an alias, topic or owner.
// It is derived on demand and never persisted.
type Aggregate struct {
	TotalClicks  int64        `json:"totalClicks"`
	UniqueUsers  int64        `json:"uniqueUsers"`
	ClicksByDate []DateCount  `json:"clicksByDate"`
	OSType       []OSStat     `json:"osType"`
	DeviceType   []DeviceStat `json:"deviceType"`
	URLs         []URLStat    `json:"urls,omitempty"`
	TotalURLs    *int64       `json:"totalUrls,omitempty"`
}

// MarshalJSON always emits urls for topic and overall aggregates, even
// when empty. Alias aggregates leave URLs nil and omit the field.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	type plain Aggregate
	if a.URLs == nil {
		return json.Marshal(plain(a))
	}
	return json.Marshal(struct {
		plain
		URLs []URLStat `json:"urls"`
	}{plain(a), a.URLs})
}

// NewAggregate returns a zeroed aggregate whose lists encode as [] rather than null.
func NewAggregate() *Aggregate {
	return &Aggregate{
		ClicksByDate: []DateCount{},
		OSType:       []OSStat{},
		DeviceType:   []DeviceStat{},
	}
}

// DateCount is the number of clicks on one calendar date (YYYY-MM-DD).
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// OSStat groups clicks by operating system. A nil OSName is its own group.
type OSStat struct {
	OSName       *string `json:"osName"`
	UniqueUsers  int64   `json:"uniqueUsers"`
	UniqueClicks int64   `json:"uniqueClicks"`
}

// DeviceStat groups clicks by device class. A nil DeviceName is its own group.
type DeviceStat struct {
	DeviceName   *string `json:"deviceName"`
	UniqueUsers  int64   `json:"uniqueUsers"`
	UniqueClicks int64   `json:"uniqueClicks"`
}

// URLStat is the per-alias line of a topic or overall aggregate.
type URLStat struct {
	ShortURL    string `json:"shortUrl"`
	TotalClicks int64  `json:"totalClicks"`
	UniqueUsers int64  `json:"uniqueUsers"`
}
