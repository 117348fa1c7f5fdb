// Package cli provides the command-line interface for the release panel.
// It wires configuration, the session store, and the host collaborators into
// either the interactive panel or a standalone stdio host.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/cdpanel/internal/config"
	"github.com/clean-dependency-project/cdpanel/internal/engine"
	"github.com/clean-dependency-project/cdpanel/internal/host"
	"github.com/clean-dependency-project/cdpanel/internal/logger"
	"github.com/clean-dependency-project/cdpanel/internal/report"
	"github.com/clean-dependency-project/cdpanel/internal/session"
	"github.com/clean-dependency-project/cdpanel/internal/tui"
)

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:     "cdpanel",
		Usage:    "Interactive release authoring panel with catalog reconciliation",
		Version:  "1.0.0",
		Compiled: time.Now(),
		Authors: []*cli.Author{
			{
				Name:  "Clean Dependency Project",
				Email: "info@example.com",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "cdpanel.yaml",
				Usage:   "path to panel configuration file",
				EnvVars: []string{"CDPANEL_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "GitHub token with repo permissions",
				EnvVars: []string{"CDPANEL_GITHUB_TOKEN", "GITHUB_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "catalog-key",
				Usage:   "catalog service API key",
				EnvVars: []string{"CDPANEL_CATALOG_KEY"},
			},
			&cli.StringFlag{
				Name:    "repo-dir",
				Usage:   "working directory of the release repository (defaults to the current directory)",
				EnvVars: []string{"CDPANEL_REPO_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "panel",
				Usage:  "Run the interactive release panel",
				Action: runPanel,
			},
			{
				Name:   "host",
				Usage:  "Serve panel requests over stdin/stdout",
				Action: runHost,
			},
			{
				Name:  "export",
				Usage: "Write an HTML snapshot of the reconciliation table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "output path for the HTML snapshot",
						Required: true,
						EnvVars:  []string{"CDPANEL_EXPORT_OUT"},
					},
					&cli.StringFlag{
						Name:  "offering",
						Usage: "catalog offering id (defaults to the configured offering)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "render without writing the file",
					},
				},
				Action: runExport,
			},
		},
		DefaultCommand: "panel",
	}
}

// runPanel starts the TUI with an in-process host. The log goes to a file;
// stdout belongs to the terminal UI.
func runPanel(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, closeLog, err := logger.NewFile(cfg.LogLevel(), cfg.LogFormat(), cfg.LogFile())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", closeErr)
		}
	}()

	db, err := initDB(cfg)
	if err != nil {
		log.Error("failed to initialize session database", "error", err)
		return fmt.Errorf("failed to initialize session database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Warn("failed to close session database", "error", closeErr)
		}
	}()

	h, err := buildHost(c, cfg, log, db)
	if err != nil {
		log.Error("failed to build host", "error", err)
		return err
	}

	eng := engine.New(log, db, engine.WithIntervals(cfg.PollInterval(), cfg.RequestTimeout()))
	app := tui.NewApp(log, eng, h)

	log.Info("panel starting", "repository", cfg.Repository)
	return tui.Run(app)
}

// runHost serves the wire protocol on stdin/stdout for an external panel
// shell. The log goes to stderr.
func runHost(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewStderr(cfg.LogLevel(), cfg.LogFormat())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Error("failed to initialize session database", "error", err)
		return fmt.Errorf("failed to initialize session database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Warn("failed to close session database", "error", closeErr)
		}
	}()

	h, err := buildHost(c, cfg, log, db)
	if err != nil {
		log.Error("failed to build host", "error", err)
		return err
	}

	log.Info("host serving on stdio", "repository", cfg.Repository)
	return h.Serve(c.Context, os.Stdin, os.Stdout)
}

// runExport writes the HTML reconciliation snapshot without starting the
// panel.
func runExport(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewStderr(cfg.LogLevel(), cfg.LogFormat())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	gh, err := host.NewGitHubClient(c.String("github-token"), cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to create github client: %w", err)
	}
	catalog, err := host.NewCatalogClient(host.CatalogConfig{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  c.String("catalog-key"),
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	offering := c.String("offering")
	if offering == "" {
		offering = cfg.Catalog.OfferingID
	}

	gen := report.NewGenerator(gh, catalog, log)
	return gen.Generate(c.Context, cfg.Repository, report.GenerateOptions{
		OfferingID: offering,
		OutputPath: c.String("out"),
		DryRun:     c.Bool("dry-run"),
	})
}

// buildHost assembles the host collaborators from configuration and flags.
func buildHost(c *cli.Context, cfg *config.Config, log *slog.Logger, db *session.DB) (*host.Host, error) {
	gh, err := host.NewGitHubClient(c.String("github-token"), cfg.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}

	catalog, err := host.NewCatalogClient(host.CatalogConfig{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  c.String("catalog-key"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	return host.New(host.Options{
		Log:          log,
		Git:          host.NewGitCLI(c.String("repo-dir")),
		Releaser:     gh,
		Catalog:      catalog,
		Cache:        db,
		ReleaseTitle: gh.ReleaseTitle,
	})
}

// initDB initializes the session database from the configuration.
func initDB(cfg *config.Config) (*session.DB, error) {
	return session.InitDB(session.Config{
		DatabasePath: cfg.DatabasePath(),
		LogLevel:     "warn",
	})
}
