package timeline

import (
	"sort"
	"time"

	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// MergeTimelines returns the union of local and server keyed by snapshot
// id, sorted by logical timestamp, oldest first. When an id appears on
// both sides the local copy wins: it may carry state the server has not
// acknowledged yet. Snapshots with unparseable timestamps sort first;
// ties keep first-seen order, local entries before server ones.
func MergeTimelines(local, server []snapshot.Snapshot) []snapshot.Snapshot {
	merged := make([]snapshot.Snapshot, 0, len(local)+len(server))
	index := make(map[string]int, len(local)+len(server))

	for _, s := range local {
		if i, ok := index[s.ID]; ok {
			merged[i] = s
			continue
		}
		index[s.ID] = len(merged)
		merged = append(merged, s)
	}
	for _, s := range server {
		if _, ok := index[s.ID]; ok {
			continue
		}
		index[s.ID] = len(merged)
		merged = append(merged, s)
	}

	keys := make([]time.Time, len(merged))
	for i, s := range merged {
		keys[i], _ = s.Time()
	}
	order := make([]int, len(merged))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return keys[order[a]].Before(keys[order[b]])
	})

	out := make([]snapshot.Snapshot, len(merged))
	for i, idx := range order {
		out[i] = merged[idx]
	}
	return out
}

// unseen returns the server snapshots whose id is absent from local.
func unseen(local, server []snapshot.Snapshot) []snapshot.Snapshot {
	known := make(map[string]bool, len(local))
	for _, s := range local {
		known[s.ID] = true
	}
	var out []snapshot.Snapshot
	for _, s := range server {
		if !known[s.ID] {
			known[s.ID] = true
			out = append(out, s)
		}
	}
	return out
}
