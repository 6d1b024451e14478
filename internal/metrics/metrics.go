// Package metrics holds the prometheus collectors exported by the trends
// store, the timeline client, and the HTTP service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Eviction reasons.
const (
	ReasonCapacity = "capacity"
	ReasonTTL      = "ttl"
)

// Timeline fetch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDisabled = "disabled"
	OutcomeError    = "error"
)

// Collectors bundles every collector. A nil *Collectors is valid and
// records nothing, so components can run without a registry.
type Collectors struct {
	SnapshotsAdded     prometheus.Counter
	Evictions          *prometheus.CounterVec
	MirrorFailures     *prometheus.CounterVec
	TimelineFetches    *prometheus.CounterVec
	IntegratedSnapshot prometheus.Counter
	TrackedCampaigns   prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		SnapshotsAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "campaigntrends_snapshots_added_total",
			Help: "Snapshots added to the in-memory history",
		}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaigntrends_snapshot_evictions_total",
			Help: "Snapshots dropped from history, by reason",
		}, []string{"reason"}),
		MirrorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaigntrends_mirror_failures_total",
			Help: "Failed persistence mirror operations, by operation",
		}, []string{"op"}),
		TimelineFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaigntrends_timeline_fetches_total",
			Help: "Server timeline fetches, by outcome",
		}, []string{"outcome"}),
		IntegratedSnapshot: f.NewCounter(prometheus.CounterOpts{
			Name: "campaigntrends_integrated_snapshots_total",
			Help: "Server snapshots integrated into local history as pinned entries",
		}),
		TrackedCampaigns: f.NewGauge(prometheus.GaugeOpts{
			Name: "campaigntrends_tracked_campaigns",
			Help: "Campaigns with in-memory history",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaigntrends_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		}, []string{"route", "code"}),
	}
}

// SnapshotAdded counts one insertion.
func (c *Collectors) SnapshotAdded() {
	if c == nil {
		return
	}
	c.SnapshotsAdded.Inc()
}

// Evicted counts n snapshots dropped for reason.
func (c *Collectors) Evicted(reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Evictions.WithLabelValues(reason).Add(float64(n))
}

// MirrorFailed counts a failed mirror operation.
func (c *Collectors) MirrorFailed(op string) {
	if c == nil {
		return
	}
	c.MirrorFailures.WithLabelValues(op).Inc()
}

// TimelineFetched counts one fetch attempt by outcome.
func (c *Collectors) TimelineFetched(outcome string) {
	if c == nil {
		return
	}
	c.TimelineFetches.WithLabelValues(outcome).Inc()
}

// Integrated counts n integrated server snapshots.
func (c *Collectors) Integrated(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.IntegratedSnapshot.Add(float64(n))
}

// SetTrackedCampaigns records the number of campaigns held in memory.
func (c *Collectors) SetTrackedCampaigns(n int) {
	if c == nil {
		return
	}
	c.TrackedCampaigns.Set(float64(n))
}

// Request counts one served HTTP request.
func (c *Collectors) Request(route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, statusText(code)).Inc()
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
