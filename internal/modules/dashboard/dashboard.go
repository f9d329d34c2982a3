package dashboard

import (
	"time"

	"github.com/adsight/adsight-api/internal/policy"
)

// Source tags where an analytics payload came from. Upstream failures fall
// back to stored data, but the swap is always visible to the caller.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Metrics is the per-platform analytics payload.
type Metrics struct {
	Followers   int64   `json:"followers"`
	Posts       int64   `json:"posts"`
	Impressions int64   `json:"impressions"`
	Engagements int64   `json:"engagements"`
	Clicks      int64   `json:"clicks"`
	AdSpend     float64 `json:"adSpend"`
}

// AnalyticsResult is a tagged analytics payload for one platform.
type AnalyticsResult struct {
	Platform  policy.Platform `json:"platform"`
	Source    Source          `json:"source"`
	Data      Metrics         `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Overview is one platform's row in the aggregated dashboard.
type Overview struct {
	Platform   policy.Platform `json:"platform"`
	Username   string          `json:"username,omitempty"`
	Source     Source          `json:"source"`
	Metrics    Metrics         `json:"metrics"`
	TokenState string          `json:"tokenState"`
}

// Data is the aggregated cross-platform dashboard payload.
type Data struct {
	Platforms []Overview `json:"platforms"`
	Totals    Metrics    `json:"totals"`
	FetchedAt time.Time  `json:"fetchedAt"`
}
