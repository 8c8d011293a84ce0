package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dgallion1/lessonsync/internal/config"
	"github.com/dgallion1/lessonsync/internal/heading"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "lessonsync",
		Usage:   "Heading inference and content synchronization for lesson documents",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Optional YAML config file overlaid on the environment",
				Sources: cli.EnvVars("LESSONSYNC_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "BCP 47 tag for all-caps detection (overrides CASE_LANGUAGE)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			convertCommand(),
			classifyCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads the environment, the optional config file and the
// global flag overrides, then validates.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Load()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if lang := cmd.String("language"); lang != "" {
		cfg.CaseLanguage = lang
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level()}))
}

func classifier(cfg config.Config) *heading.Classifier {
	return heading.Parse(cfg.CaseLanguage)
}
