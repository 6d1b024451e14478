package history

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/campaigntrends/internal/metrics"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// memMirror is an in-memory Mirror with injectable failures.
type memMirror struct {
	data    map[string][]MirrorEntry
	loads   int
	failErr error
}

func newMemMirror() *memMirror {
	return &memMirror{data: make(map[string][]MirrorEntry)}
}

func (m *memMirror) Save(id string, entries []MirrorEntry) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.data[id] = append([]MirrorEntry(nil), entries...)
	return nil
}

func (m *memMirror) Load(id string) ([]MirrorEntry, error) {
	m.loads++
	if m.failErr != nil {
		return nil, m.failErr
	}
	return m.data[id], nil
}

func (m *memMirror) Delete(id string) error {
	delete(m.data, id)
	return m.failErr
}

func snap(id string) snapshot.Snapshot {
	return snapshot.Snapshot{
		ID:               id,
		Timestamp:        "2026-01-10T09:00:00.000Z",
		Aggregates:       snapshot.ZeroMetrics(),
		ClassifiedCounts: snapshot.ClassifiedCounts{},
	}
}

func ids(snaps []snapshot.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID
	}
	return out
}

func newTestStore(clock *fakeClock, opts ...Option) *Store {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s := New(opts...)
	return s
}

func TestAddSnapshot_OrdersByIngestion(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	s.AddSnapshot("c1", snap("a"), false)
	clock.Advance(time.Second)
	s.AddSnapshot("c1", snap("b"), false)
	s.AddSnapshot("c1", snap("c"), false)

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Snapshots("c1")))
	assert.Equal(t, 3, s.SnapshotCount("c1"))

	latest, ok := s.Latest("c1")
	require.True(t, ok)
	assert.Equal(t, "c", latest.ID)
}

func TestSnapshots_UnknownCampaign(t *testing.T) {
	s := newTestStore(newFakeClock())
	assert.Empty(t, s.Snapshots("nope"))
	assert.Equal(t, 0, s.SnapshotCount("nope"))
	_, ok := s.Latest("nope")
	assert.False(t, ok)
}

func TestCapacity_KeepsNewestUnpinned(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithMaxSnapshots(3))

	for i := 0; i < 6; i++ {
		s.AddSnapshot("c1", snap(fmt.Sprintf("s%d", i)), false)
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, []string{"s3", "s4", "s5"}, ids(s.Snapshots("c1")))
}

func TestCapacity_PinnedSurvive(t *testing.T) {
	clock := newFakeClock()
	const capacity = 4
	s := newTestStore(clock, WithMaxSnapshots(capacity))

	pinned := map[string]bool{}
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("s%02d", i)
		pin := i%7 == 0 // s00, s07, s14
		if pin {
			pinned[id] = true
		}
		s.AddSnapshot("c1", snap(id), pin)
		clock.Advance(time.Millisecond)
	}

	got := s.Snapshots("c1")
	assert.LessOrEqual(t, len(got), capacity)
	present := map[string]bool{}
	for _, g := range got {
		present[g.ID] = true
	}
	for id := range pinned {
		assert.True(t, present[id], "pinned %s evicted", id)
	}
	assert.Equal(t, []string{"s00", "s07", "s14", "s19"}, ids(got))
}

func TestCapacity_PinnedMayExceedCap(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithMaxSnapshots(2))

	for i := 0; i < 4; i++ {
		s.AddSnapshot("c1", snap(fmt.Sprintf("p%d", i)), true)
		clock.Advance(time.Millisecond)
	}
	s.AddSnapshot("c1", snap("u"), false)

	assert.Equal(t, []string{"p0", "p1", "p2", "p3"}, ids(s.Snapshots("c1")))
}

func TestTTL_Boundary(t *testing.T) {
	clock := newFakeClock()
	ttl := time.Hour
	s := newTestStore(clock, WithTTL(ttl))

	s.AddSnapshot("c1", snap("old"), false)
	s.AddSnapshot("c1", snap("keep"), true)

	clock.Advance(ttl - time.Millisecond)
	assert.Equal(t, []string{"old", "keep"}, ids(s.Snapshots("c1")))

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"keep"}, ids(s.Snapshots("c1")))
}

func TestTTL_ExpiredCampaignBecomesAbsent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithTTL(time.Minute))

	s.AddSnapshot("c1", snap("a"), false)
	clock.Advance(2 * time.Minute)

	assert.Empty(t, s.Snapshots("c1"))
	assert.Empty(t, s.Campaigns())
	assert.Equal(t, MemoryStats{}, s.MemoryStats())
}

func TestTTL_AppliedOnInsert(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithTTL(time.Minute))

	s.AddSnapshot("c1", snap("a"), false)
	clock.Advance(time.Minute)
	s.AddSnapshot("c1", snap("b"), false)

	assert.Equal(t, []string{"b"}, ids(s.Snapshots("c1")))
}

func TestSetTTL_PerCampaign(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithTTL(time.Hour))
	s.SetTTL("short", time.Minute)

	s.AddSnapshot("short", snap("a"), false)
	s.AddSnapshot("long", snap("b"), false)
	clock.Advance(5 * time.Minute)

	assert.Empty(t, s.Snapshots("short"))
	assert.Len(t, s.Snapshots("long"), 1)
}

func TestDisabled_ReadsEmptyRegardlessOfState(t *testing.T) {
	clock := newFakeClock()
	var enabled atomic.Bool
	enabled.Store(true)
	s := newTestStore(clock, WithEnabled(enabled.Load))

	s.AddSnapshot("c1", snap("before"), false)
	require.Equal(t, 1, s.SnapshotCount("c1"))

	enabled.Store(false)
	s.AddSnapshot("c1", snap("during"), false)
	assert.Empty(t, s.Snapshots("c1"))
	assert.Equal(t, 0, s.SnapshotCount("c1"))
	assert.False(t, s.PinSnapshot("c1", "before"))
	assert.Equal(t, MemoryStats{}, s.MemoryStats())
	assert.Empty(t, s.Campaigns())

	enabled.Store(true)
	assert.Equal(t, []string{"before"}, ids(s.Snapshots("c1")))
}

func TestPinUnpin(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithTTL(time.Minute))

	s.AddSnapshot("c1", snap("a"), false)
	s.AddSnapshot("c1", snap("b"), false)

	assert.True(t, s.PinSnapshot("c1", "a"))
	assert.False(t, s.PinSnapshot("c1", "missing"))
	assert.False(t, s.PinSnapshot("other", "a"))
	assert.False(t, s.UnpinSnapshot("other", "a"))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, []string{"a"}, ids(s.Snapshots("c1")))

	assert.True(t, s.UnpinSnapshot("c1", "a"))
	assert.Empty(t, s.Snapshots("c1"))
}

func TestSetMaxSnapshots_PrunesImmediately(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	for i := 0; i < 5; i++ {
		s.AddSnapshot("c1", snap(fmt.Sprintf("s%d", i)), false)
		clock.Advance(time.Millisecond)
	}
	s.SetMaxSnapshots("c1", 2)
	assert.Equal(t, []string{"s3", "s4"}, ids(s.Snapshots("c1")))

	s.SetMaxSnapshots("c1", 0)
	assert.Equal(t, []string{"s4"}, ids(s.Snapshots("c1")))
}

func TestSetMaxSnapshots_BeforeFirstInsert(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	s.SetMaxSnapshots("c1", 1)

	s.AddSnapshot("c1", snap("a"), false)
	clock.Advance(time.Millisecond)
	s.AddSnapshot("c1", snap("b"), false)

	assert.Equal(t, []string{"b"}, ids(s.Snapshots("c1")))
	assert.Equal(t, []string{"c1"}, s.Campaigns())
}

func TestClearHistory(t *testing.T) {
	clock := newFakeClock()
	mirror := newMemMirror()
	s := newTestStore(clock, WithMirror(mirror))

	s.AddSnapshot("c1", snap("a"), true)
	require.Contains(t, mirror.data, "c1")

	s.ClearHistory("c1")
	assert.Empty(t, s.Snapshots("c1"))
	assert.NotContains(t, mirror.data, "c1")
}

func TestMemoryStats(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.AddSnapshot("c1", snap("a"), false)
	s.AddSnapshot("c1", snap("b"), false)
	s.AddSnapshot("c2", snap("c"), false)

	stats := s.MemoryStats()
	assert.Equal(t, 2, stats.CampaignCount)
	assert.Equal(t, 3, stats.TotalSnapshots)
	assert.Equal(t, 3*snapshotSizeKB, stats.EstimatedSizeKB)
	assert.Equal(t, []string{"c1", "c2"}, s.Campaigns())
}

func TestMirror_KeepsNewestReducedEntries(t *testing.T) {
	clock := newFakeClock()
	mirror := newMemMirror()
	s := newTestStore(clock, WithMirror(mirror), WithMirrorLimit(2))

	for i := 0; i < 4; i++ {
		sn := snap(fmt.Sprintf("s%d", i))
		sn.Aggregates.TotalDomains = snapshot.Int(100 + i)
		sn.Aggregates.DNSSuccessRate = snapshot.Num(90)
		sn.ClassifiedCounts = snapshot.ClassifiedCounts{"High Quality": i}
		s.AddSnapshot("c1", sn, i == 3)
		clock.Advance(time.Millisecond)
	}

	saved := mirror.data["c1"]
	require.Len(t, saved, 2)
	assert.Equal(t, "s2", saved[0].ID)
	assert.Equal(t, "s3", saved[1].ID)
	assert.True(t, saved[1].Pinned)
	assert.Equal(t, 103.0, saved[1].TotalDomains.Float())
	assert.Equal(t, 90.0, saved[1].DNSSuccessRate.Float())
	assert.Equal(t, snapshot.ClassifiedCounts{"High Quality": 3}, saved[1].ClassifiedCounts)
}

func TestMirror_RestoresRuleInputs(t *testing.T) {
	clock := newFakeClock()
	mirror := newMemMirror()
	wr := snapshot.Num(5)

	orig := snap("s1")
	orig.Aggregates.TotalDomains = snapshot.Int(150)
	orig.Aggregates.AvgLeadScore = snapshot.Num(45)
	orig.Aggregates.DNSSuccessRate = snapshot.Num(95)
	orig.Aggregates.HTTPSuccessRate = snapshot.Num(88)
	orig.Aggregates.WarningRate = &wr
	orig.ClassifiedCounts = snapshot.ClassifiedCounts{"High Quality": 90, "Other": 60}
	newTestStore(clock, WithMirror(mirror)).AddSnapshot("c1", orig, false)

	restored, ok := newTestStore(clock, WithMirror(mirror)).Latest("c1")
	require.True(t, ok)
	a := restored.Aggregates
	assert.Equal(t, 150.0, a.TotalDomains.Float())
	assert.Equal(t, 45.0, a.AvgLeadScore.Float())
	assert.Equal(t, 95.0, a.DNSSuccessRate.Float())
	require.NotNil(t, a.WarningRate)
	assert.Equal(t, 5.0, a.WarningRate.Float())
	assert.Equal(t, orig.ClassifiedCounts, restored.ClassifiedCounts)
	assert.Equal(t, 0.0, a.HTTPSuccessRate.Float())
}

func TestInsert_Disabled(t *testing.T) {
	s := New(WithEnabled(func() bool { return false }))
	assert.ErrorIs(t, s.Insert("c1", snap("s1"), true), ErrDisabled)

	s = New()
	require.NoError(t, s.Insert("c1", snap("s1"), true))
	assert.Equal(t, 1, s.SnapshotCount("c1"))
}

func TestMirror_LoadedOnceWhenMemoryEmpty(t *testing.T) {
	clock := newFakeClock()
	mirror := newMemMirror()
	mirror.data["c1"] = []MirrorEntry{
		{ID: "m1", Timestamp: "2026-01-10T08:00:00Z", IngestedAt: clock.Now().UnixMilli() - 1000, TotalDomains: snapshot.Int(50), AvgLeadScore: snapshot.Num(12.5), SuccessRate: snapshot.Num(80)},
		{ID: "m2", Timestamp: "2026-01-10T08:30:00Z", IngestedAt: clock.Now().UnixMilli() - 500, Pinned: true},
	}
	s := newTestStore(clock, WithMirror(mirror))

	got := s.Snapshots("c1")
	require.Equal(t, []string{"m1", "m2"}, ids(got))
	assert.Equal(t, 50.0, got[0].Aggregates.TotalDomains.Float())
	assert.Equal(t, 12.5, got[0].Aggregates.AvgLeadScore.Float())
	assert.Equal(t, 0.0, got[0].Aggregates.DNSSuccessRate.Float())
	assert.NotNil(t, got[0].ClassifiedCounts)

	s.Snapshots("c1")
	s.Snapshots("missing")
	s.Snapshots("missing")
	assert.Equal(t, 2, mirror.loads)
}

func TestMirror_HydratesBeforeFirstInsert(t *testing.T) {
	clock := newFakeClock()
	mirror := newMemMirror()
	mirror.data["c1"] = []MirrorEntry{{ID: "m1", IngestedAt: clock.Now().UnixMilli() - 1}}
	s := newTestStore(clock, WithMirror(mirror))

	s.AddSnapshot("c1", snap("new"), false)
	assert.Equal(t, []string{"m1", "new"}, ids(s.Snapshots("c1")))
}

func TestMirror_FailuresAreAdvisory(t *testing.T) {
	clock := newFakeClock()
	mirror := newMemMirror()
	mirror.failErr = errors.New("quota exceeded")
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)
	s := newTestStore(clock, WithMirror(mirror), WithMetrics(c))

	assert.NotPanics(t, func() {
		s.AddSnapshot("c1", snap("a"), false)
		s.ClearHistory("c1")
		s.Snapshots("c2")
	})
	s.AddSnapshot("c1", snap("b"), false)
	assert.Equal(t, []string{"b"}, ids(s.Snapshots("c1")))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.MirrorFailures.WithLabelValues("save")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MirrorFailures.WithLabelValues("delete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.MirrorFailures.WithLabelValues("load")))
}

func TestMetrics_Evictions(t *testing.T) {
	clock := newFakeClock()
	c := metrics.New(prometheus.NewRegistry())
	s := newTestStore(clock, WithMaxSnapshots(1), WithTTL(time.Minute), WithMetrics(c))

	s.AddSnapshot("c1", snap("a"), false)
	s.AddSnapshot("c1", snap("b"), false)
	s.AddSnapshot("c2", snap("c"), false)
	clock.Advance(time.Hour)
	s.Snapshots("c1")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.SnapshotsAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Evictions.WithLabelValues(metrics.ReasonCapacity)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Evictions.WithLabelValues(metrics.ReasonTTL)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TrackedCampaigns))
}

func TestClose_DropsState(t *testing.T) {
	s := newTestStore(newFakeClock())
	s.AddSnapshot("c1", snap("a"), false)
	require.NoError(t, s.Close())
	assert.Empty(t, s.Snapshots("c1"))
}
