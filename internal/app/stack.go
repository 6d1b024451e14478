package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/blackwell-systems/campaigntrends/internal/adapter"
	"github.com/blackwell-systems/campaigntrends/internal/config"
	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/metrics"
	"github.com/blackwell-systems/campaigntrends/internal/mirror"
	"github.com/blackwell-systems/campaigntrends/internal/timeline"
)

// stack wires the components every command shares.
type stack struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	db       *mirror.DB
	mirror   *mirror.Mirror
	store    *history.Store
	adapter  *adapter.Adapter
	timeline *timeline.Service
}

// newLogger returns a text logger writing to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStack loads configuration and builds the store, mirror, adapter,
// and timeline client. Logs go to logOut.
func openStack(logOut io.Writer) (*stack, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(logOut, flagVerbose)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st := &stack{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
	}

	storeOpts := []history.Option{
		history.WithTTL(cfg.History.TTL),
		history.WithMaxSnapshots(cfg.History.MaxSnapshots),
		history.WithMirrorLimit(cfg.History.MirrorLimit),
		history.WithEnabled(config.TrendsEnabled),
		history.WithLogger(logger),
		history.WithMetrics(m),
	}
	if cfg.Mirror.Enabled {
		db, err := mirror.Open(cfg.Mirror.Path)
		if err != nil {
			return nil, fmt.Errorf("opening mirror: %w", err)
		}
		st.db = db
		st.mirror = mirror.New(db)
		storeOpts = append(storeOpts, history.WithMirror(st.mirror))
	}

	st.store = history.New(storeOpts...)
	st.adapter = adapter.New(adapter.WithLogger(logger))
	st.timeline = timeline.New(cfg.APIBase,
		timeline.WithTimeout(cfg.Timeline.Timeout),
		timeline.WithEnabled(config.ServerTimelineEnabled),
		timeline.WithLogger(logger),
		timeline.WithMetrics(m),
	)
	return st, nil
}

// hydrate loads every mirrored campaign into the store and returns their
// ids. A fresh process otherwise only sees campaigns it touches.
func (st *stack) hydrate() []string {
	if st.mirror == nil {
		return nil
	}
	ids, err := st.mirror.Campaigns()
	if err != nil {
		st.logger.Warn("listing mirrored campaigns failed", "err", err)
		return nil
	}
	for _, id := range ids {
		st.store.SnapshotCount(id)
	}
	return ids
}

// Close releases the store and the mirror database.
func (st *stack) Close() error {
	_ = st.store.Close()
	if st.db != nil {
		return st.db.Close()
	}
	return nil
}

// readPayload reads a payload from a file, or from stdin when arg is "-".
func readPayload(arg string, stdin io.Reader) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
