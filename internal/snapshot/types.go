// Package snapshot defines the canonical point-in-time measurement of a
// campaign: aggregate metrics, classification counts, and identity.
package snapshot

import "time"

// TimestampLayout is the ISO-8601 layout used for synthesized timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// HighQualityBucket is the classification label for the best lead tier.
const HighQualityBucket = "High Quality"

// AggregateMetrics is the numeric measurement set of one snapshot.
// Rates are conventionally 0-100. Optional fields are nil when the source
// did not report them, which distinguishes "not reported" from a known zero.
type AggregateMetrics struct {
	TotalDomains    Number  `json:"totalDomains"`
	SuccessRate     Number  `json:"successRate"`
	DNSSuccessRate  Number  `json:"dnsSuccessRate"`
	HTTPSuccessRate Number  `json:"httpSuccessRate"`
	AvgLeadScore    Number  `json:"avgLeadScore"`
	Runtime         *Number `json:"runtime,omitempty"` // seconds

	HighPotentialCount *Number `json:"highPotentialCount,omitempty"`
	LeadsCount         *Number `json:"leadsCount,omitempty"`
	AvgRichness        *Number `json:"avgRichness,omitempty"`
	WarningRate        *Number `json:"warningRate,omitempty"`
	KeywordCoverage    *Number `json:"keywordCoverage,omitempty"`
	MedianGain         *Number `json:"medianGain,omitempty"`
}

// ZeroMetrics returns metrics with every required field at its default.
func ZeroMetrics() AggregateMetrics {
	return AggregateMetrics{
		TotalDomains:    Int(0),
		SuccessRate:     Int(0),
		DNSSuccessRate:  Int(0),
		HTTPSuccessRate: Int(0),
		AvgLeadScore:    Int(0),
	}
}

// ClassifiedCounts maps a classification bucket label to its domain count.
type ClassifiedCounts map[string]int

// Total returns the sum of all bucket counts.
func (c ClassifiedCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Snapshot is one immutable measurement of a campaign. Later measurements
// are new snapshots, never edits of an existing one.
type Snapshot struct {
	ID               string           `json:"id"`
	Timestamp        string           `json:"timestamp"`
	Aggregates       AggregateMetrics `json:"aggregates"`
	ClassifiedCounts ClassifiedCounts `json:"classifiedCounts"`
}

// localLayouts are ISO-8601 forms without a UTC offset, read as UTC.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Time parses the snapshot's logical timestamp. Timestamps without an
// offset are taken as UTC.
func (s Snapshot) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s.Timestamp)
	if err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if lt, lerr := time.ParseInLocation(layout, s.Timestamp, time.UTC); lerr == nil {
			return lt, nil
		}
	}
	return time.Time{}, err
}

// FormatTime renders t in the layout used for synthesized timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
