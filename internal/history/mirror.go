package history

import "github.com/blackwell-systems/campaigntrends/internal/snapshot"

// Mirror is a slower, lossy secondary copy of recent history. The store
// only writes the newest few entries with a reduced metric set, reads it
// back once when a campaign has no in-memory history, and treats every
// failure as advisory.
type Mirror interface {
	Save(campaignID string, entries []MirrorEntry) error
	Load(campaignID string) ([]MirrorEntry, error)
	Delete(campaignID string) error
}

// MirrorEntry is the reduced form of a history entry kept by a Mirror.
// It keeps the headline metrics plus every input the recommendation rules
// read, so a restored snapshot is judged like the original. HTTP success
// rate, runtime and the other extended metrics are dropped.
type MirrorEntry struct {
	ID               string                    `json:"id"`
	Timestamp        string                    `json:"timestamp"`
	IngestedAt       int64                     `json:"ingestedAt"` // unix millis
	Pinned           bool                      `json:"pinned,omitempty"`
	TotalDomains     snapshot.Number           `json:"totalDomains"`
	AvgLeadScore     snapshot.Number           `json:"avgLeadScore"`
	SuccessRate      snapshot.Number           `json:"successRate"`
	DNSSuccessRate   snapshot.Number           `json:"dnsSuccessRate"`
	WarningRate      *snapshot.Number          `json:"warningRate,omitempty"`
	ClassifiedCounts snapshot.ClassifiedCounts `json:"classifiedCounts,omitempty"`
}

func toMirrorEntry(e entry) MirrorEntry {
	return MirrorEntry{
		ID:               e.snap.ID,
		Timestamp:        e.snap.Timestamp,
		IngestedAt:       e.ingested,
		Pinned:           e.pinned,
		TotalDomains:     e.snap.Aggregates.TotalDomains,
		AvgLeadScore:     e.snap.Aggregates.AvgLeadScore,
		SuccessRate:      e.snap.Aggregates.SuccessRate,
		DNSSuccessRate:   e.snap.Aggregates.DNSSuccessRate,
		WarningRate:      e.snap.Aggregates.WarningRate,
		ClassifiedCounts: e.snap.ClassifiedCounts,
	}
}

func fromMirrorEntry(m MirrorEntry) entry {
	agg := snapshot.ZeroMetrics()
	agg.TotalDomains = m.TotalDomains
	agg.AvgLeadScore = m.AvgLeadScore
	agg.SuccessRate = m.SuccessRate
	agg.DNSSuccessRate = m.DNSSuccessRate
	agg.WarningRate = m.WarningRate
	counts := snapshot.ClassifiedCounts{}
	for label, n := range m.ClassifiedCounts {
		counts[label] = n
	}
	return entry{
		snap: snapshot.Snapshot{
			ID:               m.ID,
			Timestamp:        m.Timestamp,
			Aggregates:       agg,
			ClassifiedCounts: counts,
		},
		ingested: m.IngestedAt,
		pinned:   m.Pinned,
	}
}
