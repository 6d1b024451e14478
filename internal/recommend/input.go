package recommend

import "github.com/blackwell-systems/campaigntrends/internal/snapshot"

// BucketsFromCounts converts raw classification counts into buckets with
// percentages of the classified total. An empty or all-zero input yields
// buckets at 0%.
func BucketsFromCounts(counts snapshot.ClassifiedCounts) map[string]Bucket {
	total := counts.Total()
	buckets := make(map[string]Bucket, len(counts))
	for label, n := range counts {
		b := Bucket{Count: n}
		if total > 0 {
			b.Percentage = float64(n) / float64(total) * 100
		}
		buckets[label] = b
	}
	return buckets
}

// InputFromSnapshot builds rule input from a stored snapshot. The warning
// rate comes from the extended warningRate field when reported. Snapshots
// carry no campaign target, so TargetDomains is left at 0.
func InputFromSnapshot(s snapshot.Snapshot) Input {
	in := Input{
		Aggregates:     s.Aggregates,
		Classification: BucketsFromCounts(s.ClassifiedCounts),
	}
	if wr := s.Aggregates.WarningRate; wr != nil {
		if v, ok := wr.Float64(); ok {
			in.WarningRate = v
		}
	}
	return in
}
