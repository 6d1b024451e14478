package timeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/campaigntrends/internal/history"
)

// Defaults applied by NewSyncer.
const (
	DefaultSyncInterval = 5 * time.Minute
	DefaultConcurrency  = 4
)

// SyncReport summarizes one sync cycle.
type SyncReport struct {
	Time       time.Time
	Campaigns  int
	Integrated int
}

// Syncer periodically reconciles every known campaign with the server
// timeline. Known campaigns are the ones held by the store plus any
// registered through Track.
type Syncer struct {
	service     *Service
	store       *history.Store
	interval    time.Duration
	limit       int
	concurrency int
	reportFn    func(SyncReport)
	logger      *slog.Logger

	mu      sync.Mutex
	tracked map[string]bool
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) SyncerOption {
	return func(y *Syncer) { y.interval = d }
}

// WithPageLimit sets the page size requested per campaign.
func WithPageLimit(n int) SyncerOption {
	return func(y *Syncer) { y.limit = n }
}

// WithConcurrency caps the number of campaigns fetched in parallel.
func WithConcurrency(n int) SyncerOption {
	return func(y *Syncer) { y.concurrency = n }
}

// WithReport registers a callback invoked after every cycle.
func WithReport(fn func(SyncReport)) SyncerOption {
	return func(y *Syncer) { y.reportFn = fn }
}

// WithSyncLogger sets the logger.
func WithSyncLogger(logger *slog.Logger) SyncerOption {
	return func(y *Syncer) { y.logger = logger }
}

// NewSyncer creates a Syncer feeding store from service.
func NewSyncer(service *Service, store *history.Store, opts ...SyncerOption) *Syncer {
	y := &Syncer{
		service:     service,
		store:       store,
		interval:    DefaultSyncInterval,
		limit:       DefaultLimit,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		tracked:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(y)
	}
	if y.concurrency < 1 {
		y.concurrency = 1
	}
	if y.interval <= 0 {
		y.interval = DefaultSyncInterval
	}
	return y
}

// Track adds campaigns to every future cycle even before they hold local
// history.
func (y *Syncer) Track(campaignIDs ...string) {
	y.mu.Lock()
	defer y.mu.Unlock()
	for _, id := range campaignIDs {
		if id != "" {
			y.tracked[id] = true
		}
	}
}

// Run performs an initial sync, then syncs at every interval. Blocks until
// ctx is cancelled.
func (y *Syncer) Run(ctx context.Context) error {
	y.report(y.SyncOnce(ctx))

	ticker := time.NewTicker(y.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			y.report(y.SyncOnce(ctx))
		}
	}
}

// SyncOnce reconciles every known campaign once and reports how many
// server snapshots were integrated.
func (y *Syncer) SyncOnce(ctx context.Context) SyncReport {
	ids := y.campaigns()
	var integrated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, n := y.service.Reconcile(gctx, y.store, id, "", y.limit)
			integrated.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	return SyncReport{
		Time:       time.Now(),
		Campaigns:  len(ids),
		Integrated: int(integrated.Load()),
	}
}

func (y *Syncer) report(r SyncReport) {
	y.logger.Debug("timeline sync", "campaigns", r.Campaigns, "integrated", r.Integrated)
	if y.reportFn != nil {
		y.reportFn(r)
	}
}

func (y *Syncer) campaigns() []string {
	seen := make(map[string]bool)
	for _, id := range y.store.Campaigns() {
		seen[id] = true
	}
	y.mu.Lock()
	for id := range y.tracked {
		seen[id] = true
	}
	y.mu.Unlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
