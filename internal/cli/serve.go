package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/bayan/internal/server"
	"github.com/hyperjump/bayan/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Loads the saved index (a missing index is not an error) and serves
/health, /chat, /chat/stream, /index and /api/v1/status until interrupted.
With --watch, or watch.enabled in the config, the index is rebuilt when
files in the text directory change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rebuild the index when the text directory changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	p := components.Pipeline
	if _, err := p.LoadIndex(""); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled || serveWatch {
		w := watcher.NewWatcher(cfg.Paths.TextDir, cfg.Chunking.Pattern,
			rebuildOnChange(p, logger),
			watcher.WithDebounce(cfg.Watch.Debounce()),
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		logger.Info("watching text directory", zap.String("text_dir", cfg.Paths.TextDir))
	}

	srv := server.NewServer(p, &cfg.Server,
		server.WithLogger(logger),
		server.WithIndexDir(cfg.Paths.IndexDir),
		server.WithDiskPaths(cfg.Paths.IndexDir, cfg.Paths.DatabasePath),
		server.WithVersion(version))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
