// cmd/inventory/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"bookinventory/internal/catalog"
	"bookinventory/internal/config"
	"bookinventory/internal/store"
	"bookinventory/internal/telemetry"
)

func main() {
	dataFile := flag.String("data", "", "path to the library data file (overrides LIBRARY_DATA_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)
	if err := run(context.Background(), cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error("inventory stopped", "error", err)
		os.Exit(1)
	}
}

// newLogger writes structured logs to w, tagging every line with a per-run
// session ID. Stdout is left to the menu.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("session_id", uuid.NewString())
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	fileStore := store.NewFileStore(cfg.DataFile, logger)
	svc, err := catalog.NewService(ctx, fileStore, catalog.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("starting inventory", "data_file", fileStore.Path())
	return catalog.NewHandler(svc, in, out).Run(ctx)
}
