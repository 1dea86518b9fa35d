// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/zeroapp/credvault/cmd/app/commands"
	"github.com/zeroapp/credvault/internal/app"
	"github.com/zeroapp/credvault/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "credvault",
		Usage:   "Per-user encrypted credential vault",
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
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "rotate-user-key",
				Usage: "Rotate a user's data encryption key and re-encrypt their credentials",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user-id",
						Aliases:  []string{"u"},
						Required: true,
						Usage:    "User whose data key should be rotated",
					},
					&cli.StringFlag{
						Name:    "reason",
						Aliases: []string{"r"},
						Usage:   "Reason recorded in the access log",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					container, logger, err := newContainer()
					if err != nil {
						return err
					}
					defer shutdownContainer(container, logger)

					manager, err := container.CredentialManager()
					if err != nil {
						return fmt.Errorf("failed to initialize credential manager: %w", err)
					}

					return commands.RunRotateUserKey(
						ctx,
						manager,
						logger,
						os.Stdout,
						cmd.String("user-id"),
						cmd.String("reason"),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "clean-access-logs",
				Usage: "Delete access logs older than specified days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "days",
						Aliases:  []string{"d"},
						Required: true,
						Usage:    "Delete access logs older than this many days",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					container, logger, err := newContainer()
					if err != nil {
						return err
					}
					defer shutdownContainer(container, logger)

					accessLogUseCase, err := container.AccessLogUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize access log use case: %w", err)
					}

					return commands.RunCleanAccessLogs(
						ctx,
						accessLogUseCase,
						logger,
						os.Stdout,
						cmd.Int("days"),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "seed-platforms",
				Usage: "Seed the platform catalog (built-in defaults or a JSON file)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"F"},
						Usage:   "JSON file with platform entries (omit for built-in catalog)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					container, logger, err := newContainer()
					if err != nil {
						return err
					}
					defer shutdownContainer(container, logger)

					platformUseCase, err := container.PlatformUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize platform use case: %w", err)
					}

					return commands.RunSeedPlatforms(
						ctx,
						platformUseCase,
						logger,
						os.Stdout,
						cmd.String("file"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

// newContainer loads configuration and builds the DI container used by the
// database-backed commands.
func newContainer() (*app.Container, *slog.Logger, error) {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	return container, container.Logger(), nil
}

// shutdownContainer releases container resources and logs any failure.
func shutdownContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}
