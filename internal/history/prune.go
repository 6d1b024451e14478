package history

import "sort"

// pruneCapacity keeps every pinned entry plus the most recently ingested
// unpinned entries up to max-pinned. Pinned entries alone may exceed max.
// Survivors keep their relative order. It returns the number dropped.
func (h *campaignHistory) pruneCapacity() int {
	if len(h.entries) <= h.maxSnapshots {
		return 0
	}

	var unpinned []int
	for i, e := range h.entries {
		if !e.pinned {
			unpinned = append(unpinned, i)
		}
	}
	budget := h.maxSnapshots - (len(h.entries) - len(unpinned))
	if budget < 0 {
		budget = 0
	}
	excess := len(unpinned) - budget
	if excess <= 0 {
		return 0
	}

	sort.SliceStable(unpinned, func(a, b int) bool {
		return h.entries[unpinned[a]].ingested < h.entries[unpinned[b]].ingested
	})
	drop := make(map[int]bool, excess)
	for _, i := range unpinned[:excess] {
		drop[i] = true
	}

	kept := h.entries[:0]
	for i, e := range h.entries {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	clear(h.entries[len(kept):])
	h.entries = kept
	return excess
}

// pruneTTL drops unpinned entries ingested at or before cutoff (unix
// millis). It returns the number dropped.
func (h *campaignHistory) pruneTTL(cutoff int64) int {
	kept := h.entries[:0]
	for _, e := range h.entries {
		if e.pinned || e.ingested > cutoff {
			kept = append(kept, e)
		}
	}
	dropped := len(h.entries) - len(kept)
	clear(h.entries[len(kept):])
	h.entries = kept
	return dropped
}

// ordered returns the entries sorted by ascending ingestion time. Entries
// ingested in the same millisecond keep insertion order.
func (h *campaignHistory) ordered() []entry {
	out := make([]entry, len(h.entries))
	copy(out, h.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ingested < out[j].ingested
	})
	return out
}

// newest returns the index of the most recently ingested entry, or -1.
func (h *campaignHistory) newest() int {
	idx := -1
	for i, e := range h.entries {
		if idx < 0 || e.ingested >= h.entries[idx].ingested {
			idx = i
		}
	}
	return idx
}
