package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/campaigntrends/internal/config"
	"github.com/blackwell-systems/campaigntrends/internal/server"
	"github.com/blackwell-systems/campaigntrends/internal/timeline"
)

var (
	serveAddr   string
	serveNoSync bool
	serveDaemon bool
	serveStop   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service and background timeline sync",
	Long: `Serve the campaign history over HTTP and periodically reconcile every
known campaign with the server timeline. Mirrored campaigns are loaded at
startup so the sync covers them immediately.

Examples:
  campaigntrends serve                     # run in foreground (ctrl-c to stop)
  campaigntrends serve --addr :9000        # override listen_addr
  campaigntrends serve --no-sync           # HTTP only, no background sync
  campaigntrends serve --daemon            # write PID file, log to file
  campaigntrends serve --stop              # stop the background daemon`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "Disable the background timeline sync")
	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "Stop a running background daemon")
	rootCmd.AddCommand(serveCmd)
}

// pidFilePath returns the path to the daemon PID file.
func pidFilePath() string {
	return filepath.Join(config.ConfigDir(), "serve.pid")
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "serve.log")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveStop {
		return stopDaemon(cmd.OutOrStdout())
	}

	logOut := cmd.ErrOrStderr()
	if serveDaemon {
		logFile, cleanup, err := startDaemon()
		if err != nil {
			return err
		}
		defer cleanup()
		logOut = logFile
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	return serve(ctx, logOut)
}

// serve runs the HTTP server and the syncer until ctx is cancelled.
func serve(ctx context.Context, logOut io.Writer) error {
	st, err := openStack(logOut)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	addr := st.cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(st.store, st.adapter, st.timeline,
		server.WithMetrics(st.metrics, st.registry),
		server.WithLogger(st.logger),
		server.WithTimelineLimit(st.cfg.Timeline.Limit),
	)
	httpSrv := server.NewHTTPServer(addr, srv.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.logger.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if !serveNoSync {
		syncer := timeline.NewSyncer(st.timeline, st.store,
			timeline.WithInterval(st.cfg.Timeline.SyncInterval),
			timeline.WithPageLimit(st.cfg.Timeline.Limit),
			timeline.WithConcurrency(st.cfg.Timeline.Concurrency),
			timeline.WithSyncLogger(st.logger),
			timeline.WithReport(func(r timeline.SyncReport) {
				if r.Integrated > 0 {
					st.logger.Info("timeline sync", "campaigns", r.Campaigns, "integrated", r.Integrated)
				}
			}),
		)
		syncer.Track(st.hydrate()...)
		g.Go(func() error {
			if err := syncer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	st.logger.Info("stopped")
	return err
}

// startDaemon checks for a running daemon, writes the PID file, and opens
// the log file. The actual backgrounding should be done by the caller
// (nohup, &, a service manager) since Go cannot reliably fork.
func startDaemon() (*os.File, func(), error) {
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating config dir: %w", err)
	}

	if pid, err := readPID(); err == nil {
		if processExists(pid) {
			return nil, nil, fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
		}
		// Stale PID file.
		_ = os.Remove(pidFilePath())
	}

	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, nil, fmt.Errorf("writing PID file: %w", err)
	}

	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = os.Remove(pidFilePath())
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	cleanup := func() {
		_ = logFile.Close()
		_ = os.Remove(pidFilePath())
	}
	return logFile, cleanup, nil
}

// readPID reads the daemon PID from the PID file.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}
