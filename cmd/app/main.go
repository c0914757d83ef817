// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/registrations/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Registration entry lifecycle manager",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "clean-expired",
				Usage: "Delete expired registration entries and stale abuse records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCleanExpired(ctx, cmd.String("format"))
				},
			},
			{
				Name:  "reconcile",
				Usage: "Delete records whose encryption key never reached the vault",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "grace",
						Aliases: []string{"g"},
						Value:   5 * time.Minute,
						Usage:   "How long a keyless record may settle before it is treated as an orphan",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunReconcile(ctx, cmd.Duration("grace"), cmd.String("format"))
				},
			},
			{
				Name:  "retrieve-entry",
				Usage: "Inspect a registration entry by id",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "Entry id (UR-...)",
					},
					&cli.BoolFlag{
						Name:    "reveal",
						Aliases: []string{"r"},
						Value:   false,
						Usage:   "Decrypt and print the contact identifier",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRetrieveEntry(ctx, cmd.String("id"), cmd.Bool("reveal"))
				},
			},
			{
				Name:  "generate-api-keys",
				Usage: "Generate API keys and their Argon2id hashes for API_KEY_HASHES",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"c"},
						Value:   1,
						Usage:   "Number of keys to generate",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGenerateAPIKeys(cmd.Int("count"), os.Stdout)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
