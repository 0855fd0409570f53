// Command scan runs a one-shot library scan against a directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
	"github.com/soundleaf/soundleaf-server/internal/scanner"
	"github.com/soundleaf/soundleaf-server/internal/service"
	"github.com/soundleaf/soundleaf-server/internal/store/sqlite"
	"github.com/soundleaf/soundleaf-server/internal/validation"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: scan <library-path> [db-path]")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dbPath := filepath.Join(os.TempDir(), "soundleaf-scan.db")
	if len(os.Args) > 2 {
		dbPath = os.Args[2]
	}

	st, err := sqlite.Open(dbPath, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	coordinator := scanner.NewCoordinator(
		scanner.NewWalker(logger),
		scanner.NewMediaExtractor(),
		logger,
	)
	svc := service.NewLibraryService(st, coordinator, validation.New(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	src, err := svc.RegisterSource(ctx, os.Args[1])
	if err != nil {
		// Re-running against the same database is fine.
		if !domainerrors.Is(err, domainerrors.ErrConflict) {
			logger.Error("register source", "error", err)
			os.Exit(1)
		}
		logger.Info("source already registered", "uri", os.Args[1])
	}

	started := time.Now()
	added, err := svc.Scan(ctx, service.ScanOptions{
		Notify: func(n service.Notice) {
			fmt.Printf("[%s] %s\n", n.Title, n.Body)
		},
	})
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Scan Complete ===\n")
	if src != nil {
		fmt.Printf("Source:   %s (%s)\n", src.URI, src.ID)
	}
	fmt.Printf("Duration: %s\n", time.Since(started).Round(time.Millisecond))
	fmt.Printf("Added:    %d\n", added)
	fmt.Printf("Database: %s\n", dbPath)
}
