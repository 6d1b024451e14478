// Package history keeps a bounded, time-expiring history of metric
// snapshots per campaign.
//
// Two independent pressures evict entries: a per-campaign capacity and a
// time-to-live measured from when the store ingested the entry. Pinned
// entries are exempt from both. An optional Mirror keeps a small, lossy
// copy of recent entries that survives restarts.
package history

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blackwell-systems/campaigntrends/internal/metrics"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// Defaults applied by New.
const (
	DefaultTTL          = 24 * time.Hour
	DefaultMaxSnapshots = 100
	DefaultMirrorLimit  = 10

	// snapshotSizeKB is the fixed per-snapshot estimate used by MemoryStats.
	snapshotSizeKB = 2.0
)

// entry wraps a snapshot with store-local bookkeeping.
type entry struct {
	snap     snapshot.Snapshot
	ingested int64 // unix millis, store-local ingestion time
	pinned   bool
}

// campaignHistory is the unordered entry list of one campaign.
type campaignHistory struct {
	entries      []entry
	maxSnapshots int
	ttl          time.Duration
}

// policy holds per-campaign overrides of the store-wide limits.
type policy struct {
	maxSnapshots int
	ttl          time.Duration
}

// MemoryStats is a diagnostic rollup across all tracked campaigns.
type MemoryStats struct {
	CampaignCount   int     `json:"campaignCount"`
	TotalSnapshots  int     `json:"totalSnapshots"`
	EstimatedSizeKB float64 `json:"estimatedSizeKB"`
}

// Store is the in-memory snapshot history. All methods are safe for
// concurrent use; each call is one atomic step.
type Store struct {
	mu        sync.Mutex
	histories map[string]*campaignHistory
	policies  map[string]policy
	hydrated  map[string]bool

	ttl          time.Duration
	maxSnapshots int
	mirrorLimit  int
	enabled      func() bool
	mirror       Mirror
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Collectors
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the store-wide time-to-live. A non-positive TTL disables
// age-based eviction.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithMaxSnapshots sets the store-wide capacity per campaign (minimum 1).
func WithMaxSnapshots(n int) Option {
	return func(s *Store) { s.maxSnapshots = max(n, 1) }
}

// WithEnabled sets the feature toggle. It is consulted on every call.
func WithEnabled(fn func() bool) Option {
	return func(s *Store) { s.enabled = fn }
}

// WithMirror attaches a persistence mirror.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithMirrorLimit caps how many of the newest entries are mirrored.
func WithMirrorLimit(n int) Option {
	return func(s *Store) { s.mirrorLimit = max(n, 1) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics records store activity on c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Store) { s.metrics = c }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		histories:    make(map[string]*campaignHistory),
		policies:     make(map[string]policy),
		hydrated:     make(map[string]bool),
		ttl:          DefaultTTL,
		maxSnapshots: DefaultMaxSnapshots,
		mirrorLimit:  DefaultMirrorLimit,
		enabled:      func() bool { return true },
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close drops all in-memory state. The mirror is left untouched.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[string]*campaignHistory)
	s.policies = make(map[string]policy)
	s.hydrated = make(map[string]bool)
	s.metrics.SetTrackedCampaigns(0)
	return nil
}

// ErrDisabled is returned by Insert while the store is switched off.
var ErrDisabled = errors.New("history: trends disabled")

// AddSnapshot records snap for a campaign, then prunes by capacity, then
// by age, then refreshes the mirror. It is a no-op while disabled.
func (s *Store) AddSnapshot(campaignID string, snap snapshot.Snapshot, pinned bool) {
	_ = s.Insert(campaignID, snap, pinned)
}

// Insert is AddSnapshot for callers that count stored snapshots. It
// returns ErrDisabled when the snapshot was dropped.
func (s *Store) Insert(campaignID string, snap snapshot.Snapshot, pinned bool) error {
	if !s.enabled() {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(campaignID, snap, pinned)
	return nil
}

// Snapshots returns the surviving snapshots of a campaign ordered by
// ingestion time, oldest first.
func (s *Store) Snapshots(campaignID string) []snapshot.Snapshot {
	if !s.enabled() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.liveLocked(campaignID)
	if h == nil {
		return nil
	}
	ordered := h.ordered()
	out := make([]snapshot.Snapshot, len(ordered))
	for i, e := range ordered {
		out[i] = e.snap
	}
	return out
}

// Latest returns the most recently ingested snapshot of a campaign.
func (s *Store) Latest(campaignID string) (snapshot.Snapshot, bool) {
	snaps := s.Snapshots(campaignID)
	if len(snaps) == 0 {
		return snapshot.Snapshot{}, false
	}
	return snaps[len(snaps)-1], true
}

// SnapshotCount returns the number of surviving snapshots of a campaign.
func (s *Store) SnapshotCount(campaignID string) int {
	if !s.enabled() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.liveLocked(campaignID)
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// ClearHistory removes a campaign's in-memory and mirrored state.
func (s *Store) ClearHistory(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.histories, campaignID)
	delete(s.policies, campaignID)
	s.hydrated[campaignID] = true
	s.metrics.SetTrackedCampaigns(len(s.histories))

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Delete(campaignID); err != nil {
		s.mirrorFailed("delete", campaignID, err)
	}
}

// SetMaxSnapshots changes a campaign's capacity (minimum 1). If the
// campaign already holds more entries, its newest entry is re-inserted to
// run the normal prune pass.
func (s *Store) SetMaxSnapshots(campaignID string, n int) {
	n = max(n, 1)
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.policyLocked(campaignID)
	p.maxSnapshots = n
	s.policies[campaignID] = p

	h := s.histories[campaignID]
	if h == nil {
		return
	}
	h.maxSnapshots = n
	if len(h.entries) <= n || !s.enabled() {
		return
	}
	idx := h.newest()
	last := h.entries[idx]
	h.entries = append(h.entries[:idx], h.entries[idx+1:]...)
	s.insertLocked(campaignID, last.snap, last.pinned)
}

// SetTTL overrides the time-to-live of one campaign.
func (s *Store) SetTTL(campaignID string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.policyLocked(campaignID)
	p.ttl = ttl
	s.policies[campaignID] = p
	if h := s.histories[campaignID]; h != nil {
		h.ttl = ttl
	}
}

// PinSnapshot exempts the matching snapshot from eviction. It reports
// false when no entry has that id.
func (s *Store) PinSnapshot(campaignID, snapshotID string) bool {
	return s.setPinned(campaignID, snapshotID, true)
}

// UnpinSnapshot makes the matching snapshot evictable again. It reports
// false when no entry has that id.
func (s *Store) UnpinSnapshot(campaignID, snapshotID string) bool {
	return s.setPinned(campaignID, snapshotID, false)
}

// MemoryStats summarizes what the store currently holds.
func (s *Store) MemoryStats() MemoryStats {
	if !s.enabled() {
		return MemoryStats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats MemoryStats
	for _, id := range s.campaignIDsLocked() {
		h := s.liveLocked(id)
		if h == nil {
			continue
		}
		stats.CampaignCount++
		stats.TotalSnapshots += len(h.entries)
	}
	stats.EstimatedSizeKB = float64(stats.TotalSnapshots) * snapshotSizeKB
	return stats
}

// Campaigns returns the ids of campaigns with in-memory history, sorted.
func (s *Store) Campaigns() []string {
	if !s.enabled() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, id := range s.campaignIDsLocked() {
		if s.liveLocked(id) != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) setPinned(campaignID, snapshotID string, pinned bool) bool {
	if !s.enabled() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.liveLocked(campaignID)
	if h == nil {
		return false
	}
	found := false
	for i := range h.entries {
		if h.entries[i].snap.ID == snapshotID {
			h.entries[i].pinned = pinned
			found = true
		}
	}
	if found {
		s.saveMirrorLocked(campaignID, h)
	}
	return found
}

func (s *Store) insertLocked(campaignID string, snap snapshot.Snapshot, pinned bool) {
	h := s.hydrateLocked(campaignID)
	if h == nil {
		p := s.policyLocked(campaignID)
		h = &campaignHistory{maxSnapshots: p.maxSnapshots, ttl: p.ttl}
		s.histories[campaignID] = h
	}

	h.entries = append(h.entries, entry{
		snap:     snap,
		ingested: s.now().UnixMilli(),
		pinned:   pinned,
	})
	s.metrics.SnapshotAdded()
	s.metrics.Evicted(metrics.ReasonCapacity, h.pruneCapacity())
	s.expireLocked(campaignID, h)
	s.metrics.SetTrackedCampaigns(len(s.histories))
	s.saveMirrorLocked(campaignID, h)
}

// liveLocked returns a campaign's history after hydrating it from the
// mirror and expiring old entries, or nil when nothing survives.
func (s *Store) liveLocked(campaignID string) *campaignHistory {
	h := s.hydrateLocked(campaignID)
	if h == nil {
		return nil
	}
	if !s.expireLocked(campaignID, h) {
		return nil
	}
	return h
}

// hydrateLocked returns the in-memory history, loading it from the mirror
// the first time a campaign without in-memory history is touched.
func (s *Store) hydrateLocked(campaignID string) *campaignHistory {
	if h, ok := s.histories[campaignID]; ok {
		return h
	}
	if s.mirror == nil || s.hydrated[campaignID] {
		return nil
	}
	s.hydrated[campaignID] = true

	loaded, err := s.mirror.Load(campaignID)
	if err != nil {
		s.mirrorFailed("load", campaignID, err)
		return nil
	}
	if len(loaded) == 0 {
		return nil
	}

	p := s.policyLocked(campaignID)
	h := &campaignHistory{maxSnapshots: p.maxSnapshots, ttl: p.ttl}
	for _, m := range loaded {
		h.entries = append(h.entries, fromMirrorEntry(m))
	}
	s.histories[campaignID] = h
	s.logger.Debug("history restored from mirror", "campaign", campaignID, "entries", len(h.entries))
	return h
}

// expireLocked applies TTL pruning and forgets the campaign once it is
// empty. It reports whether the campaign still has entries.
func (s *Store) expireLocked(campaignID string, h *campaignHistory) bool {
	if h.ttl > 0 {
		cutoff := s.now().Add(-h.ttl).UnixMilli()
		s.metrics.Evicted(metrics.ReasonTTL, h.pruneTTL(cutoff))
	}
	if len(h.entries) == 0 {
		delete(s.histories, campaignID)
		s.metrics.SetTrackedCampaigns(len(s.histories))
		return false
	}
	return true
}

func (s *Store) saveMirrorLocked(campaignID string, h *campaignHistory) {
	if s.mirror == nil {
		return
	}
	ordered := h.ordered()
	if len(ordered) > s.mirrorLimit {
		ordered = ordered[len(ordered)-s.mirrorLimit:]
	}
	reduced := make([]MirrorEntry, len(ordered))
	for i, e := range ordered {
		reduced[i] = toMirrorEntry(e)
	}
	if err := s.mirror.Save(campaignID, reduced); err != nil {
		s.mirrorFailed("save", campaignID, err)
	}
}

func (s *Store) mirrorFailed(op, campaignID string, err error) {
	s.metrics.MirrorFailed(op)
	s.logger.Warn("history mirror "+op+" failed", "campaign", campaignID, "err", err)
}

func (s *Store) policyLocked(campaignID string) policy {
	if p, ok := s.policies[campaignID]; ok {
		return p
	}
	return policy{maxSnapshots: s.maxSnapshots, ttl: s.ttl}
}

func (s *Store) campaignIDsLocked() []string {
	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
