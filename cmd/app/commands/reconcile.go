package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/allisson/registrations/internal/app"
	"github.com/allisson/registrations/internal/config"
	registrationUsecase "github.com/allisson/registrations/internal/registration/usecase"
)

// RunReconcile scans live entries and deletes records whose encryption key
// never reached the vault.
func RunReconcile(ctx context.Context, grace time.Duration, format string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	entryRepo, err := container.EntryRepository()
	if err != nil {
		return fmt.Errorf("failed to initialize entry repository: %w", err)
	}

	abuseRepo, err := container.AbuseLogRepository()
	if err != nil {
		return fmt.Errorf("failed to initialize abuse log repository: %w", err)
	}

	vaultClient, err := container.VaultClient()
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	reconciler := registrationUsecase.NewReconciler(entryRepo, abuseRepo, vaultClient, logger, grace)

	report, err := reconciler.Reconcile(ctx, cfg.AbuseWindow)
	if err != nil {
		return fmt.Errorf("failed to reconcile: %w", err)
	}

	return printReconcileReport(os.Stdout, report, format)
}

func printReconcileReport(out io.Writer, report *registrationUsecase.ReconcileReport, format string) error {
	if format == "json" {
		result := map[string]interface{}{
			"checked":               report.Checked,
			"orphan_records":        report.OrphanRecords,
			"expired_entries":       report.ExpiredEntries,
			"expired_abuse_records": report.ExpiredAbuseRecords,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(out, "Checked %d live entry(ies)\n", report.Checked)
	fmt.Fprintf(out, "Deleted %d orphan record(s)\n", report.OrphanRecords)
	fmt.Fprintf(
		out,
		"Evicted %d expired entry(ies) and %d stale abuse record(s)\n",
		report.ExpiredEntries,
		report.ExpiredAbuseRecords,
	)
	return nil
}
