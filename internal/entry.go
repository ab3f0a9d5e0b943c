// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashwell/tally/internal/api"
	"github.com/ashwell/tally/internal/history"
	"github.com/ashwell/tally/internal/ledgerservice"
	"github.com/ashwell/tally/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("history_path", cfg.History.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize the ledger store.
	ledger, err := storage.NewLedger(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	// Initialize the edit-history log.
	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer hist.Close()

	svc := ledgerservice.NewService(ledger, hist)

	// The end command acknowledges first, then stops the whole process.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	h := api.NewHandler(svc, func(endpoint string) {
		logger.Info("Shutdown requested", slog.String("endpoint", endpoint))
		stop()
	})

	endpoints := []struct {
		name     string
		addr     string
		dispatch http.HandlerFunc
	}{
		{"summary", cfg.App.Services.Summary.Address(), h.Summary},
		{"edit", cfg.App.Services.Edit.Address(), h.Edit},
		{"delete", cfg.App.Services.Delete.Address(), h.Delete},
		{"search", cfg.App.Services.Search.Address(), h.Search},
	}

	g, gCtx := errgroup.WithContext(runCtx)

	servers := make([]*http.Server, 0, len(endpoints))
	for _, ep := range endpoints {
		srv := &http.Server{
			Addr:    ep.addr,
			Handler: api.NewRouter(ep.dispatch),
		}
		servers = append(servers, srv)

		name, addr := ep.name, ep.addr
		g.Go(func() error {
			logger.Info("Starting service endpoint",
				slog.String("service", name), slog.String("address", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s endpoint error: %w", name, err)
			}
			return nil
		})
	}

	// Watch the ledger file for on-disk changes.
	g.Go(func() error {
		if err := ledger.Watch(gCtx, logger, func(op string) {
			logger.Debug("Ledger file changed on disk", slog.String("op", op))
		}); err != nil {
			logger.Warn("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down service endpoints...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("endpoint shutdown error", slog.String("error", err.Error()))
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("All endpoints stopped successfully")
	return nil
}
