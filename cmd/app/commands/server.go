package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/registrations/internal/app"
	"github.com/allisson/registrations/internal/config"
	"github.com/allisson/registrations/internal/http"
	registrationUsecase "github.com/allisson/registrations/internal/registration/usecase"
)

// RunServer starts the API server, the metrics server, and the expiry
// sweeper. Blocks until SIGINT/SIGTERM or a fatal server error, then shuts
// everything down gracefully, waiting for in-flight background writes.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	entryUseCase, err := container.EntryUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize entry use case: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 2)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	go runSweeper(ctx, entryUseCase, cfg.SweepInterval, logger)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return shutdownServers(server, metricsServer, cfg.DBConnMaxLifetime, nil)
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		return shutdownServers(server, metricsServer, cfg.DBConnMaxLifetime, err)
	}
}

// runSweeper periodically evicts expired entries and stale abuse records.
// Expired vault keys need no sweeping: they carry their own expiry.
func runSweeper(
	ctx context.Context,
	entryUseCase registrationUsecase.EntryUseCase,
	interval time.Duration,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, abuseRecords, err := entryUseCase.CleanupExpired(ctx)
			if err != nil {
				logger.Error("sweep failed", slog.Any("error", err))
				continue
			}
			if entries > 0 || abuseRecords > 0 {
				logger.Info("sweep completed",
					slog.Int64("entries", entries),
					slog.Int64("abuse_records", abuseRecords),
				)
			}
		}
	}
}

// shutdownServers stops both servers within the timeout and joins any errors
// with the triggering error.
func shutdownServers(
	server *http.Server,
	metricsServer *http.MetricsServer,
	timeout time.Duration,
	cause error,
) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErrors []error
	if cause != nil {
		shutdownErrors = append(shutdownErrors, cause)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return errors.Join(shutdownErrors...)
	}

	return nil
}
