package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"depot/internal/auth"
	"depot/internal/blobstore"
	"depot/internal/config"
	"depot/internal/depot"
	"depot/internal/metrics"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// newStore builds the configured blob-store backend and its quota.
func newStore(cfg config.Config) (blobstore.Storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		var store *blobstore.Memory
		quota := storeQuota(cfg, func() (int64, error) { return store.Usage() })
		store = blobstore.NewMemory(quota)
		return store, nil

	case config.StorageLocal:
		absDataDir, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}

		// Payloads live under storage/ so the metadata database next to it
		// never shows up in listings or quota accounting.
		root := filepath.Join(absDataDir, "storage")

		// An unlimited probe store provides the usage source for the quota
		// so the real store's writes are measured against live disk state.
		base, err := blobstore.NewLocal(root, nil)
		if err != nil {
			return nil, err
		}
		return blobstore.NewLocal(root, storeQuota(cfg, base.Usage))

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func storeQuota(cfg config.Config, usage func() (int64, error)) blobstore.Quota {
	if cfg.MaxBytes <= 0 {
		return blobstore.Unlimited{}
	}
	return blobstore.NewByteLimit(cfg.MaxBytes, usage)
}

// newAuthenticator assembles the auth engines named in the config. A nil
// return means authentication is disabled.
func newAuthenticator(cfg config.Config) auth.Engine {
	var engines []auth.Engine
	if len(cfg.Users) > 0 {
		engines = append(engines, auth.NewBasic(cfg.Users))
	}
	if len(cfg.Tokens) > 0 {
		engines = append(engines, auth.NewToken(cfg.Tokens))
	}

	switch len(engines) {
	case 0:
		return nil
	case 1:
		return engines[0]
	default:
		return auth.NewCompound(engines...)
	}
}

func Run(ctx context.Context) error {

	configPath := flag.String("config", "", "path to YAML config file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "directory to store artifact data (overrides config)")
	maxBytes := flag.Int64("max-bytes", -1, "storage quota in bytes, 0 for unlimited (overrides config)")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *maxBytes >= 0 {
		cfg.MaxBytes = *maxBytes
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	serverDataDir := ""
	if cfg.Storage == config.StorageLocal {
		serverDataDir, err = filepath.Abs(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}

	server, err := depot.NewServer(ctx, depot.Config{
		DataDir:       serverDataDir,
		Store:         store,
		MaxBytes:      cfg.MaxBytes,
		Authenticator: newAuthenticator(cfg),
		AnonymousRead: cfg.AnonymousRead,
		Metrics:       metrics.New(),
	})
	if err != nil {
		return fmt.Errorf("failed to create depot server: %w", err)
	}

	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting depot HTTP server", "addr", cfg.Listen, "storage", cfg.Storage)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Depot started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Depot exited with error", "error", err)
		os.Exit(1)
	}
}
