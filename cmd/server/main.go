// Package main provides the entry point for the SoundLeaf server application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundleaf/soundleaf-server/internal/config"
	"github.com/soundleaf/soundleaf-server/internal/logger"
	"github.com/soundleaf/soundleaf-server/internal/lookup"
	"github.com/soundleaf/soundleaf-server/internal/scanner"
	"github.com/soundleaf/soundleaf-server/internal/service"
	"github.com/soundleaf/soundleaf-server/internal/store/sqlite"
	"github.com/soundleaf/soundleaf-server/internal/validation"
	"github.com/soundleaf/soundleaf-server/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
	})

	if err := os.MkdirAll(cfg.Store.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := sqlite.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := st.Close(); err != nil {
			log.WithError(err).Error("Failed to close database")
		}
	}()

	// Explicit object graph: walker and extractor feed the coordinator,
	// the coordinator feeds the store through the library service.
	coordinator := scanner.NewCoordinator(
		scanner.NewWalker(log.Logger),
		scanner.NewMediaExtractor(),
		log.Logger,
	)
	librarySvc := service.NewLibraryService(st, coordinator, validation.New(), log.Logger)

	if cfg.Lookup.BaseURL != "" {
		librarySvc.SetLookupClient(lookup.NewClient(cfg.Lookup.BaseURL, cfg.Lookup.APIKey, log.Logger))
		log.Info("volume lookup enabled", "url", cfg.Lookup.BaseURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanOpts := service.ScanOptions{
		BatchSize: cfg.Library.BatchSize,
		Notify: func(n service.Notice) {
			log.Info(n.Title, "detail", n.Body)
		},
	}

	added, err := librarySvc.Scan(ctx, scanOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Error("initial scan failed")
	} else {
		log.Info("initial scan finished", "added", added)
	}

	if cfg.Library.Watch {
		if err := runWatcher(ctx, cfg, log, librarySvc, scanOpts); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	log.Info("Shutting down server gracefully...")
	return nil
}

// runWatcher watches all active source roots and rescans on changes.
// Blocks until the context is canceled.
func runWatcher(ctx context.Context, cfg *config.Config, log *logger.Logger, librarySvc *service.LibraryService, scanOpts service.ScanOptions) error {
	w, err := watcher.New(log.Logger, cfg.Library.WatchDebounce)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	sources, err := librarySvc.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	for _, src := range sources {
		if !src.IsActive {
			continue
		}
		if err := w.Watch(src.URI); err != nil {
			log.WithError(err).Warn("cannot watch source", "source_id", src.ID)
		}
	}

	go func() {
		if err := w.Start(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("watcher stopped")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case trigger := <-w.Triggers():
			log.Info("source changed, rescanning", "root", trigger.Root)
			if _, err := librarySvc.Scan(ctx, scanOpts); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("rescan failed")
			}
		}
	}
}
