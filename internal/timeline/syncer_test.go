package timeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/campaigntrends/internal/history"
)

// campaignServer answers every timeline request with one snapshot named
// after the campaign.
func campaignServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/campaigns/"), "/timeline")
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"snapshots":[{"id":"srv-` + id + `","timestamp":"2026-03-01T00:00:00.000Z","aggregates":{},"classifiedCounts":{}}],"totalCount":1}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func TestSyncer_SyncOnce(t *testing.T) {
	srv, seen := campaignServer(t)
	store := history.New()
	store.AddSnapshot("c1", snap("loc", "2026-03-01T01:00:00.000Z"), false)

	y := NewSyncer(New(srv.URL), store, WithConcurrency(2))
	y.Track("c2", "")

	report := y.SyncOnce(context.Background())
	assert.Equal(t, 2, report.Campaigns)
	assert.Equal(t, 2, report.Integrated)
	assert.ElementsMatch(t, []string{"c1", "c2"}, seen())

	assert.Equal(t, []string{"loc", "srv-c1"}, ids(store.Snapshots("c1")))
	assert.Equal(t, []string{"srv-c2"}, ids(store.Snapshots("c2")))

	again := y.SyncOnce(context.Background())
	assert.Zero(t, again.Integrated)
	assert.Equal(t, 2, store.SnapshotCount("c1"))
}

func TestSyncer_RunStopsOnCancel(t *testing.T) {
	srv, _ := campaignServer(t)
	store := history.New()

	reports := make(chan SyncReport, 16)
	y := NewSyncer(New(srv.URL), store,
		WithInterval(10*time.Millisecond),
		WithReport(func(r SyncReport) { reports <- r }),
	)
	y.Track("c1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- y.Run(ctx) }()

	first := <-reports
	assert.Equal(t, 1, first.Integrated)
	<-reports
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 1, store.SnapshotCount("c1"))
}

func TestNewSyncer_Floors(t *testing.T) {
	y := NewSyncer(New("http://unused"), history.New(), WithConcurrency(0), WithInterval(-1))
	assert.Equal(t, 1, y.concurrency)
	assert.Equal(t, DefaultSyncInterval, y.interval)
}
