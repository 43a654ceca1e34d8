package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"team-chat/internal"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every deferred close run.
func run() error {
	// 1. Configuration & Logger
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge index...")
		_ = writer.Close()
	}()

	// 3. Wiring
	app, err := internal.NewApplication(config, log, db, writer)
	if err != nil {
		return err
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start the supervised workers
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := app.Orchestrator.Start(ctx); err != nil {
			log.Error("Orchestrator stopped with error", "error", err)
		}
	}()

	// 6. HTTP Server Setup
	srv := &http.Server{
		Addr:              config.Address(),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(app.Realtime.CloseAll)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", srv.Addr, "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server forced to shutdown", "error", err)
	}
	app.Orchestrator.Stop()
	<-workersDone
	log.Info("Program stopped cleanly")

	return serveErr
}
