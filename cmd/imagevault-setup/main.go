// Command imagevault-setup provisions the backing resources the service
// expects: the object-store bucket and the metadata table. It is safe
// to run repeatedly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"imagevault/internal/config"
	"imagevault/internal/store"
)

func Run(ctx context.Context) error {
	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.InfoLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})

	slog.SetDefault(slog.New(handler))

	cfg := config.Load()

	objects, err := store.NewMinioStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	if err := objects.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket %q: %w", cfg.Bucket, err)
	}
	slog.Info("Bucket ready", "bucket", cfg.Bucket)

	// Opening the store creates the table and its indexes if missing.
	records, err := store.NewSQLiteStore(ctx, cfg.DBPath, cfg.RecordTable)
	if err != nil {
		return fmt.Errorf("failed to initialize record store: %w", err)
	}
	defer records.Close()
	slog.Info("Record table ready", "db", cfg.DBPath, "table", cfg.RecordTable)

	slog.Info("Setup complete")
	return nil
}

func main() {
	if err := Run(context.Background()); err != nil {
		slog.Error("setup failed", "error", err)
		os.Exit(1)
	}
}
