package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agentic-research/dirworld/internal/cache"
	"github.com/agentic-research/dirworld/internal/config"
	"github.com/agentic-research/dirworld/internal/watcher"
	"github.com/agentic-research/dirworld/internal/world"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// tickInterval is how often the world drains watcher events and finished
// jobs.
const tickInterval = 100 * time.Millisecond

// drainTimeout bounds how long a closing session waits for lock and unlock
// jobs still running.
const drainTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run [root]",
	Short: "Open a world rooted at a directory and explore it from stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		root := cfg.Root
		if len(args) == 1 {
			root = args[0]
		}
		if root == "" {
			return fmt.Errorf("no world root: pass one or set root in the config")
		}
		if root, err = filepath.Abs(root); err != nil {
			return fmt.Errorf("resolve root: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSession(ctx, cfg, root, log, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSession(ctx context.Context, cfg config.Config, root string, log *slog.Logger, in io.Reader, out io.Writer) error {
	codecs, err := cfg.Registry()
	if err != nil {
		return err
	}
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}

	// 1. Restore evicted payloads from the previous session
	evicted := cache.New()
	var store *cache.SQLiteStore
	if cfg.CacheDB != "" {
		if store, err = cache.OpenSQLite(cfg.CacheDB, log); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		entries, err := store.Restore(ctx)
		if err != nil {
			return err
		}
		evicted.Load(entries)
		log.Info("cache restored", "entries", len(entries), "db", cfg.CacheDB)
	}

	// 2. Watcher and world
	wt, err := watcher.New(watcher.Options{Debounce: debounce, Logger: log})
	if err != nil {
		return err
	}
	defer func() { _ = wt.Close() }()

	reg := prometheus.NewRegistry()
	w := world.New(world.Options{
		FS:      osfs.New("/"),
		Codecs:  codecs,
		Cache:   evicted,
		Watcher: wt,
		Logger:  log,
		Metrics: world.NewMetrics(reg),
		Marker:  cfg.Marker,
	})
	defer w.Close()
	if err := w.ChangeRoot(root); err != nil {
		return err
	}

	if path, err := saveSession(&SessionMetadata{
		PID:         os.Getpid(),
		Root:        root,
		CacheDB:     cfg.CacheDB,
		MetricsAddr: cfg.MetricsAddr,
		Timestamp:   time.Now(),
	}); err != nil {
		log.Warn("session sidecar not written", "error", err)
	} else {
		defer func() { _ = os.Remove(path) }()
	}

	// 3. Run
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Losing the watcher stops live updates, not the session.
		if err := wt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("file watching stopped", "error", err)
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	lines := make(chan string)
	go scanLines(ctx, in, lines)
	r := &repl{w: w, out: out}
	_, _ = fmt.Fprintf(out, "world %s (type help)\n", root)
	g.Go(func() error {
		return serve(ctx, w, r, lines, tickInterval)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) {
		err = nil
	}

	// 4. Finish background jobs so their results reach disk
	w.Close()
	if pending := w.Pending(); len(pending) > 0 {
		log.Info("waiting for jobs", "jobs", pending)
		dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if werr := w.Wait(dctx); werr != nil {
			log.Error("jobs still running at exit", "jobs", w.Pending(), "error", werr)
		}
		cancel()
	}
	w.Tick()

	// 5. Keep live edits for next time
	if store != nil {
		w.Leave()
		if ferr := store.Flush(context.Background(), evicted.Snapshot()); ferr != nil {
			log.Error("cache flush failed", "error", ferr)
		} else {
			log.Info("cache flushed", "entries", evicted.Len())
		}
	}
	return err
}

// serve owns the world: it ticks and runs commands, and nothing else touches
// the world while it runs.
func serve(ctx context.Context, w *world.World, r *repl, lines <-chan string, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Tick()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := r.exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				_, _ = fmt.Fprintln(r.out, "error:", err)
			}
		}
	}
}

func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}
