package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/booknotes/internal/daemon"
	"github.com/user/booknotes/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface",
	Long: `Run the booknotes web interface.

The server listens on --addr (default :3000, or $PORT). Unless --no-watch is
given, note files edited or deleted outside the app are put back from the
database as soon as they change.

Only one server may run per data directory.

Examples:
  booknotes serve
  booknotes serve --addr 127.0.0.1:8080
  PORT=8000 booknotes serve --no-watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :3000)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the notes directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lock, err := daemon.AcquirePID(cfg.PIDPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("failed to remove pid file", "path", lock.Path(), "err", err)
		}
	}()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.SyncNotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile note files: %w", err)
	}
	if report.Written > 0 || report.Removed > 0 {
		slog.Info("reconciled note files", "written", report.Written, "removed", report.Removed)
	}

	srv, err := server.New(store, server.Options{RateLimit: cfg.RateLimit, Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer srv.Close()

	var watcher *daemon.Watcher
	if cfg.WatchEnabled() {
		watcher, err = daemon.NewWatcher(store.Notes().Dir(), store.RestoreNote, watcherLog)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "addr", ln.Addr().String(), "data", cfg.DataDir, "driver", cfg.DBDriver, "version", Version)
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.Info("Server stopped")
		return nil
	})

	if watcher != nil {
		slog.Info("Watching note files", "dir", store.Notes().Dir(), "files", watcher.NoteFileCount())
		g.Go(func() error { return watcher.Run(gctx) })
	}

	err = g.Wait()
	if watcher != nil && watcher.Restored() > 0 {
		slog.Info("Note files restored while serving", "count", watcher.Restored())
	}
	return err
}

// watcherLog routes watcher messages to the debug log.
func watcherLog(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "watcher")
}
