package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/daybook/internal"
	pkgconfig "github.com/starford/daybook/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if owner := cmd.String("owner"); owner != "" {
		cfg.MCP.Owner = owner
	}

	// Stdout carries the protocol.
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func week(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.PrintWeek(ctx, os.Stdout, cmd.String("owner"), cmd.String("date"), cmd.String("kind"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func main() {
	cmd := &cli.Command{
		Name:   "daybook",
		Usage:  "Day planner for notes and quoted jobs with weekly totals",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve planner tools over MCP stdio",
				Action: mcp,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "owner",
						Usage:   "Owner the tools act as (overrides mcp.owner)",
						Sources: cli.EnvVars("DAYBOOK_MCP_OWNER"),
					},
				},
			},
			{
				Name:   "week",
				Usage:  "Print the Monday-start week around a date as JSON",
				Action: week,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Anchor day: YYYY-MM-DD or a phrase like 'next friday'",
						Value: "today",
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "notes or jobs",
						Value: "jobs",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Owner whose days to read",
						Value: "local",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
