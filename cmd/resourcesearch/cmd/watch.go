package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/logging"
	"github.com/Aman-CERP/resourcesearch/internal/ui"
	"github.com/Aman-CERP/resourcesearch/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	data        []string
	plain       bool
	noColor     bool
	metricsAddr string
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Search interactively while data files change",
		Long: `Load the given data files and search them interactively.

On a terminal every keystroke re-runs the query against all resources.
Otherwise one query is read per line from stdin and the results are
printed once every resource has settled. ":resources" lists resource names,
":stats" prints search statistics and ":quit" exits.

Edits to the data files are picked up and the affected resources are
reindexed; the current query is re-run against the new data.

Examples:
  resourcesearch watch --data docs.yaml
  printf 'first\nsecond\n' | resourcesearch watch --data docs.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, g, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.data, "data", "d", nil, "Data file to load and watch (repeatable)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Use line-oriented mode even on a terminal")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts watchOptions) error {
	ctx, cancelSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelSignals()

	out := cmd.OutOrStdout()
	interactive := !opts.plain && ui.IsTTY(out) && !ui.DetectCI()

	// Log lines on stderr would tear the TUI; debug logging goes to a file.
	logger := g.logger
	if interactive && !g.debug {
		logger = logging.Discard()
	}

	rt, err := openRuntime(ctx, g.cfg, logger, opts.data)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	debounce, err := g.cfg.FileDebounce()
	if err != nil {
		return errors.ConfigError(err.Error(), err)
	}
	fw, err := watcher.NewFileWatcher(opts.data, watcher.Options{DebounceWindow: debounce}, logger)
	if err != nil {
		return errors.InternalError(fmt.Sprintf("watch data files: %v", err), err)
	}
	defer func() { _ = fw.Stop() }()

	session := ui.NewSession(ui.NewConfig(cmd.InOrStdin(), out,
		ui.WithForcePlain(!interactive),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithTitle(titleFor(opts.data)),
		ui.WithResolve(rt.resolve),
	), rt.coord)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	eg, egCtx := errgroup.WithContext(runCtx)

	if opts.metricsAddr != "" {
		ln, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("listen on %s: %v", opts.metricsAddr, err), err)
		}
		logger.Info("metrics_listening", slog.String("addr", ln.Addr().String()))
		serveMetrics(egCtx, eg, ln, rt.coord.Metrics().Handler())
	}

	eg.Go(func() error {
		if err := fw.Start(egCtx); err != nil && !stderrors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		watcher.Sync(egCtx, fw.Events(), rt.store, logger, reloadNotifier(session))
		return nil
	})
	eg.Go(func() error {
		for {
			select {
			case <-egCtx.Done():
				return nil
			case err, ok := <-fw.Errors():
				if !ok {
					return nil
				}
				logger.Warn("file_watcher_error", slog.String("error", err.Error()))
				session.Notify(ui.Notice{Level: ui.LevelWarn, Message: err.Error(), Time: time.Now()})
			}
		}
	})
	eg.Go(func() error {
		// The session ending (quit or end of input) ends the watch.
		defer stop()
		return session.Run(egCtx)
	})

	logger.Info("watch_started", slog.Int("files", len(opts.data)), slog.Bool("interactive", interactive))
	err = eg.Wait()
	logger.Info("watch_stopped")
	return err
}

// serveMetrics serves /metrics on ln until ctx ends.
func serveMetrics(ctx context.Context, eg *errgroup.Group, ln net.Listener, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// reloadNotifier reports data file reloads to the session.
func reloadNotifier(session ui.Session) watcher.ReloadFunc {
	return func(path string, err error) {
		n := ui.Notice{Time: time.Now()}
		name := filepath.Base(path)
		switch {
		case err != nil:
			n.Level = ui.LevelError
			n.Message = fmt.Sprintf("reload %s failed: %v", name, err)
		case !fileExists(path):
			n.Level = ui.LevelWarn
			n.Message = fmt.Sprintf("%s removed, keeping last data", name)
		default:
			n.Level = ui.LevelInfo
			n.Message = fmt.Sprintf("reloaded %s", name)
		}
		session.Notify(n)
	}
}

func titleFor(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
