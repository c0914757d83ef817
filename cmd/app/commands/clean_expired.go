package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/allisson/registrations/internal/app"
	"github.com/allisson/registrations/internal/config"
	registrationUsecase "github.com/allisson/registrations/internal/registration/usecase"
)

// RunCleanExpired deletes expired registration entries and abuse records
// older than the abuse window.
func RunCleanExpired(ctx context.Context, format string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	entryUseCase, err := container.EntryUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize entry use case: %w", err)
	}

	return cleanExpired(ctx, entryUseCase, logger, os.Stdout, format)
}

func cleanExpired(
	ctx context.Context,
	entryUseCase registrationUsecase.EntryUseCase,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	entries, abuseRecords, err := entryUseCase.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean expired records: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"entries":       entries,
			"abuse_records": abuseRecords,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(jsonBytes))
	} else {
		fmt.Fprintf(out, "Deleted %d expired entry(ies) and %d stale abuse record(s)\n", entries, abuseRecords)
	}

	logger.Info("cleanup completed",
		slog.Int64("entries", entries),
		slog.Int64("abuse_records", abuseRecords),
	)

	return nil
}
