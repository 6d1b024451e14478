package recommend

import "sort"

var severityRank = map[string]int{
	SeverityAction: 0,
	SeverityWarn:   1,
	SeverityInfo:   2,
}

// SortBySeverity returns a copy ordered action, warn, info. Findings of
// equal severity keep their rule order. Unknown severities sort last.
func SortBySeverity(recs []Recommendation) []Recommendation {
	sorted := make([]Recommendation, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i].Severity) < rank(sorted[j].Severity)
	})
	return sorted
}

func rank(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return len(severityRank)
}
