// Package timeline reconciles locally collected campaign snapshots with
// the history held by the campaign API.
//
// The server timeline is an enhancement, not a required data path: every
// failure to reach it degrades to an empty result so callers can fall
// back to local data.
package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/metrics"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// Defaults applied by New.
const (
	DefaultLimit   = 50
	DefaultTimeout = 10 * time.Second
)

// Result is one page of the server timeline.
type Result struct {
	Snapshots  []snapshot.Snapshot `json:"snapshots"`
	TotalCount int                 `json:"totalCount"`
	LastSync   string              `json:"lastSync,omitempty"`
}

// emptyResult is what every failed or disabled fetch returns.
func emptyResult() Result {
	return Result{Snapshots: []snapshot.Snapshot{}}
}

// AddFunc inserts one snapshot into local history.
type AddFunc func(campaignID string, s snapshot.Snapshot, pinned bool) error

// AddTo returns an AddFunc writing into store. It fails with
// history.ErrDisabled while the store is switched off.
func AddTo(store *history.Store) AddFunc {
	return store.Insert
}

// Service talks to the remote timeline endpoint.
type Service struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	enabled func() bool
	logger  *slog.Logger
	metrics *metrics.Collectors
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithTimeout bounds each fetch. Zero leaves the deadline to the caller's
// context and the client.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithEnabled sets the feature toggle. It is consulted on every call.
func WithEnabled(fn func() bool) Option {
	return func(s *Service) { s.enabled = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records fetch and integration counts on c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Service) { s.metrics = c }
}

// New creates a Service for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Service {
	s := &Service{
		baseURL: baseURL,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		enabled: func() bool { return true },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchServerTimeline reads one page of a campaign's server timeline. Any
// failure, including a disabled toggle, a non-2xx status, an undecodable
// body, or a timeout, yields an empty result. There are no retries.
func (s *Service) FetchServerTimeline(ctx context.Context, campaignID, cursor string, limit int) Result {
	if !s.enabled() {
		s.metrics.TimelineFetched(metrics.OutcomeDisabled)
		return emptyResult()
	}
	res, err := s.fetch(ctx, campaignID, cursor, limit)
	if err != nil {
		s.metrics.TimelineFetched(metrics.OutcomeError)
		s.logger.Warn("server timeline unavailable", "campaign", campaignID, "err", err)
		return emptyResult()
	}
	s.metrics.TimelineFetched(metrics.OutcomeOK)
	return res
}

func (s *Service) fetch(ctx context.Context, campaignID, cursor string, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	endpoint, err := url.JoinPath(s.baseURL, "campaigns", url.PathEscape(campaignID), "timeline")
	if err != nil {
		return Result{}, fmt.Errorf("building timeline url: %w", err)
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint += "?" + q.Encode()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decoding timeline: %w", err)
	}
	if res.Snapshots == nil {
		res.Snapshots = []snapshot.Snapshot{}
	}
	return res, nil
}

// IntegrateServerSnapshotBatch inserts each server snapshot as a pinned
// entry through add, so server-confirmed history is not evicted by local
// churn. A failing or panicking insertion skips only that snapshot. It
// returns the number inserted, or 0 without calling add when disabled.
func (s *Service) IntegrateServerSnapshotBatch(campaignID string, snaps []snapshot.Snapshot, add AddFunc) int {
	if !s.enabled() {
		return 0
	}
	integrated := 0
	for _, snap := range snaps {
		if err := safeAdd(add, campaignID, snap); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, history.ErrDisabled) {
				level = slog.LevelDebug
			}
			s.logger.Log(context.Background(), level, "server snapshot not integrated", "campaign", campaignID, "snapshot", snap.ID, "err", err)
			continue
		}
		integrated++
	}
	s.metrics.Integrated(integrated)
	return integrated
}

func safeAdd(add AddFunc, campaignID string, snap snapshot.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("insert panicked: %v", r)
		}
	}()
	return add(campaignID, snap, true)
}

// Reconcile fetches one page of the server timeline, merges it with the
// store's local history, and integrates server snapshots the store has not
// seen yet. Repeated calls do not duplicate entries. It returns the merged
// timeline and the number of snapshots integrated.
func (s *Service) Reconcile(ctx context.Context, store *history.Store, campaignID, cursor string, limit int) ([]snapshot.Snapshot, int) {
	local := store.Snapshots(campaignID)
	res := s.FetchServerTimeline(ctx, campaignID, cursor, limit)
	merged := MergeTimelines(local, res.Snapshots)
	n := s.IntegrateServerSnapshotBatch(campaignID, unseen(local, res.Snapshots), AddTo(store))
	return merged, n
}
