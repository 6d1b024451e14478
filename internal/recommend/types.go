// Package recommend provides the campaign recommendation engine and its
// rule set.
package recommend

import "github.com/blackwell-systems/campaigntrends/internal/snapshot"

// Severity levels for recommendations.
const (
	SeverityInfo   = "info"
	SeverityWarn   = "warn"
	SeverityAction = "action"
)

// Recommendation ids.
const (
	IDLowHighQuality  = "low-high-quality"
	IDHighWarningRate = "high-warning-rate"
	IDNoLeads         = "no-leads-generated"
	IDLowDNSSuccess   = "low-dns-success"
	IDGoodPerformance = "good-performance"
	IDAllClear        = "all-clear"
)

// Thresholds. Rates and percentages are on a 0-100 scale.
const (
	// MinDomainsForQuality is the smallest campaign the quality rule judges.
	MinDomainsForQuality = 100

	LowHighQualityPct  = 15.0
	HighWarningRate    = 25.0
	LowDNSSuccessRate  = 70.0
	GoodHighQualityPct = 40.0
	GoodMaxWarningRate = 10.0
)

// Recommendation is one advisory finding.
type Recommendation struct {
	ID        string `json:"id"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	Rationale string `json:"rationale"`
}

// Bucket is one classification tier with its share of classified domains.
type Bucket struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Input is everything the rules look at.
type Input struct {
	Aggregates     snapshot.AggregateMetrics `json:"aggregates"`
	Classification map[string]Bucket         `json:"classification"`
	WarningRate    float64                   `json:"warningRate"`
	TargetDomains  int                       `json:"targetDomains"`
}

// highQualityPct returns the "High Quality" bucket percentage, 0 when the
// bucket is absent.
func (in *Input) highQualityPct() float64 {
	return in.Classification[snapshot.HighQualityBucket].Percentage
}

// Rule examines an input and produces zero or more recommendations.
type Rule func(in *Input) []Recommendation
