package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mattkinnersley/dbxjobs/internal/emulator"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 15 * time.Second

func emulatorCmd() *cli.Command {
	return &cli.Command{
		Name:  "emulator",
		Usage: "Serve an in-memory workspace job API for dry runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Usage:   "Port to listen on (default 8765)",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:  "seed-file",
				Usage: "YAML file with runtimes and jobs to start with (default ./emulator.yaml)",
			},
			&cli.StringFlag{
				Name:  "emulator-token",
				Usage: "Bearer token clients must send, empty accepts any",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			cfg := s.cfg.Emulator
			if v := cmd.String("port"); v != "" {
				cfg.Port = v
			}
			if v := cmd.String("seed-file"); v != "" {
				cfg.SeedFile = v
			}
			if v := cmd.String("emulator-token"); v != "" {
				cfg.Token = v
			}

			logger := s.logging.Logger("Workspace Emulator")

			seed, err := emulator.LoadSeed(cfg.SeedFile)
			if err != nil {
				return fmt.Errorf("load seed: %w", err)
			}
			store := emulator.NewStore()
			ids := seed.Apply(store, cfg.User)
			logger.Info().Int("jobs", len(ids)).Int("runtimes", len(seed.Runtimes)).Str("seed_file", cfg.SeedFile).Msg("seeded store")

			srv := emulator.New(store, cfg.Token, cfg.User, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(cfg.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info().Msg("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Stop(shutdownCtx)
			}
		},
	}
}
