package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mattkinnersley/dbxjobs/internal/config"
	"github.com/mattkinnersley/dbxjobs/internal/logging"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "dbxjobs",
		Version: version,
		Usage:   "Export, update and re-create workspace jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("DBXJOBS_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:  "workspace-url",
				Usage: "Workspace URL (default from WORKSPACE_URL)",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Workspace bearer token (default from TOKEN)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "Directory for per-component log files, empty to disable",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Read from the workspace but only log updates and creates",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Stop a batch at the first failing job",
			},
		},
		Commands: []*cli.Command{
			runtimesCmd(),
			exportCmd(),
			importCmd(),
			changeRuntimeCmd(),
			changeCatalogCmd(),
			emulatorCmd(),
		},
	}
}

// session holds what every command builds from config and flags.
type session struct {
	cfg     *config.Config
	logging *logging.Logging
	api     workspace.API
	runID   string
}

// newSession loads configuration and logging. With requireWorkspace it
// also validates the workspace settings and builds the API client; a
// missing URL or token fails here, before anything is sent.
func newSession(cmd *cli.Command, requireWorkspace bool) (*session, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v := cmd.String("workspace-url"); v != "" {
		cfg.Workspace.URL = v
	}
	if v := cmd.String("token"); v != "" {
		cfg.Workspace.Token = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if cmd.IsSet("log-dir") {
		cfg.Logging.Dir = cmd.String("log-dir")
	}

	if requireWorkspace {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	s := &session{cfg: cfg, runID: uuid.New().String()[:8]}
	s.logging, err = logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Console: zerolog.ConsoleWriter{Out: errWriter(cmd), TimeFormat: time.RFC3339},
		RunID:   s.runID,
	})
	if err != nil {
		return nil, err
	}

	if requireWorkspace {
		client := workspace.NewClient(cfg.Workspace.URL, cfg.Workspace.Token, cfg.Workspace.Timeout, s.logging.Logger("Workspace Client"))
		client.SetPageSize(cfg.Workspace.PageSize)
		s.api = client
		if cmd.Bool("dry-run") {
			s.api = workspace.NewDryRun(client, s.logging.Logger("Dry Run"))
		}
	}
	return s, nil
}

func (s *session) Close() {
	_ = s.logging.Close()
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
