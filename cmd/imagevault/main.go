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
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"imagevault/internal/config"
	"imagevault/internal/images"
	"imagevault/internal/server"
	"imagevault/internal/store"
)

func Run(ctx context.Context) error {

	listenPort := flag.String("listen", "8080", "HTTP listen port")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
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

	records, err := store.NewSQLiteStore(ctx, cfg.DBPath, cfg.RecordTable)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer records.Close()

	svc := images.NewService(objects, records)
	router := server.New(svc).Handler()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listenPort),
		Handler:           router,
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
		slog.Info("Starting imagevault HTTP server", "port", *listenPort, "bucket", cfg.Bucket, "db", cfg.DBPath)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	slog.Info("imagevault started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("imagevault exited with error", "error", err)
		os.Exit(1)
	}
}
