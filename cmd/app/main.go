package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notegraph/internal"
	pkgconfig "github.com/starford/notegraph/pkg/config"
)

var version = "dev"

// stdout receives command output; logs go to stderr.
var stdout io.Writer = os.Stdout

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("notes-dir"); dir != "" {
		cfg.Notes.Dir = dir
	}
	if db := cmd.String("db"); db != "" {
		cfg.SQLite.Path = db
	}
	return cfg, nil
}

// appAction opens the notes directory and index, brings the index up to date
// unless sync is false, runs fn, then runs the exit work.
func appAction(sync bool, fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := internal.NewLogger(cfg, os.Stderr)

		app, err := internal.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		if sync {
			if _, err := app.Service.Reindex(ctx); err != nil {
				return fmt.Errorf("sync index: %w", err)
			}
		}
		if err := fn(ctx, cmd, app); err != nil {
			return err
		}
		app.Finish(ctx)
		return nil
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "notegraph",
		Usage:   "Index, search and navigate a directory of linked Markdown notes",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "notes-dir",
				Usage:   "Notes root directory (overrides notes.dir)",
				Sources: cli.EnvVars("NOTEGRAPH_NOTES_DIR"),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Index database path (overrides sqlite.path)",
				Sources: cli.EnvVars("NOTEGRAPH_DB"),
			},
		},
		Commands: commands(),
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
