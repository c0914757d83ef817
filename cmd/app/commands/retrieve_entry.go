package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/allisson/registrations/internal/app"
	"github.com/allisson/registrations/internal/config"
	"github.com/allisson/registrations/internal/registration/domain"
	registrationUsecase "github.com/allisson/registrations/internal/registration/usecase"
)

// RunRetrieveEntry prints a registration entry for operator inspection.
// With reveal set, the contact identifier is decrypted and printed: use only
// on isolated operator hosts, never in shared terminals or logs.
func RunRetrieveEntry(ctx context.Context, id string, reveal bool) error {
	if id == "" {
		return fmt.Errorf("id must not be empty")
	}

	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	entryUseCase, err := container.EntryUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize entry use case: %w", err)
	}

	return retrieveEntry(ctx, entryUseCase, os.Stdout, id, reveal)
}

func retrieveEntry(
	ctx context.Context,
	entryUseCase registrationUsecase.EntryUseCase,
	out io.Writer,
	id string,
	reveal bool,
) error {
	var entry *domain.Entry
	var plaintext string
	var err error

	if reveal {
		entry, plaintext, err = entryUseCase.Reveal(ctx, id)
	} else {
		entry, err = entryUseCase.Get(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve entry: %w", err)
	}

	fmt.Fprintf(out, "ID:                  %s\n", entry.ID)
	fmt.Fprintf(out, "Service prefix:      %s\n", entry.ServicePrefix)
	fmt.Fprintf(out, "Created at:          %s\n", entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(out, "Expiry at:           %s\n", entry.ExpiryAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(out, "Verification status: %s\n", entry.VerificationStatus)
	fmt.Fprintf(out, "Encrypted payload:   %s\n", entry.EncryptedPayload)

	if reveal {
		fmt.Fprintf(out, "Contact identifier:  %s\n", plaintext)
	}

	return nil
}
