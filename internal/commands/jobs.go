package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattkinnersley/dbxjobs/internal/jobs"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/urfave/cli/v3"
)

func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "name-prefix",
			Usage: "Only jobs whose name starts with this prefix (case sensitive, empty matches all)",
		},
		&cli.StringFlag{
			Name:  "owner",
			Usage: "Only jobs created by this user",
		},
		&cli.StringSliceFlag{
			Name:  "job-id",
			Usage: "Only these job ids (repeatable)",
		},
	}
}

func buildSelector(cmd *cli.Command) (jobs.Selector, error) {
	selectors := []jobs.Selector{jobs.NamePrefix(cmd.String("name-prefix"))}
	if owner := cmd.String("owner"); owner != "" {
		selectors = append(selectors, jobs.Owner(owner))
	}
	if raw := cmd.StringSlice("job-id"); len(raw) > 0 {
		ids := make([]int64, 0, len(raw))
		for _, v := range raw {
			id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid job id %q: %w", v, err)
			}
			ids = append(ids, id)
		}
		selectors = append(selectors, jobs.IDs(ids...))
	}
	return jobs.All(selectors...), nil
}

// parseSparkConfig turns key=value pairs into a map. Later pairs win.
func parseSparkConfig(pairs []string) (map[string]string, error) {
	conf := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid spark config %q, expected key=value", pair)
		}
		conf[key] = value
	}
	return conf, nil
}

func printReport(w io.Writer, report *jobs.Report) {
	for _, o := range report.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "FAILED\t%d\t%s\t%v\n", o.JobID, o.Name, o.Err)
		case o.Skipped:
			fmt.Fprintf(w, "SKIPPED\t%d\t%s\n", o.JobID, o.Name)
		default:
			fmt.Fprintf(w, "OK\t%d\t%s\t%s\n", o.JobID, o.Name, o.Detail)
		}
	}
}

func runtimesCmd() *cli.Command {
	return &cli.Command{
		Name:  "runtimes",
		Usage: "List the workspace runtimes, newest key first",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "contains",
				Usage: "Only runtimes whose key contains this string (repeatable)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()
			logger := s.logging.Logger("Get Runtime Versions")

			runtimes, err := s.api.ListRuntimes(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("error fetching runtimes")
				return fmt.Errorf("list runtimes: %w", err)
			}
			sorted := workspace.SortRuntimes(workspace.FilterRuntimes(runtimes, cmd.StringSlice("contains")...))
			logger.Info().Int("count", len(sorted)).Msg("returning runtime versions")

			w := outWriter(cmd)
			if len(sorted) == 0 {
				fmt.Fprintln(w, "No runtimes found.")
				return nil
			}
			for _, r := range sorted {
				fmt.Fprintf(w, "%s\t%s\n", r.Key, r.Name)
			}
			return nil
		},
	}
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Save the configuration of matching jobs as JSON files",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Directory for exported job files (default ./jobs_json)",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			sel, err := buildSelector(cmd)
			if err != nil {
				return err
			}
			dir := s.cfg.Export.Dir
			if v := cmd.String("export-dir"); v != "" {
				dir = v
			}

			logger := s.logging.Logger("Job Exporter")
			exporter := jobs.NewExporter(s.api, dir, logger)
			exporter.FailFast = cmd.Bool("fail-fast")

			report, err := exporter.Export(ctx, sel)
			if err != nil {
				logger.Error().Err(err).Msg("failed to save jobs as JSON")
				return err
			}
			report.Log(logger)
			printReport(outWriter(cmd), report)
			return report.Err()
		},
	}
}

func importCmd() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Create a new job for every JSON file in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "import-dir",
				Usage: "Directory holding job files (default ./jobs_json)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			dir := s.cfg.Export.Dir
			if v := cmd.String("import-dir"); v != "" {
				dir = v
			}

			logger := s.logging.Logger("Create JSON Jobs")
			importer := jobs.NewImporter(s.api, logger)
			importer.FailFast = cmd.Bool("fail-fast")

			report, err := importer.Import(ctx, dir)
			if err != nil {
				logger.Error().Err(err).Msg("failed to create jobs")
				return err
			}
			report.Log(logger)
			printReport(outWriter(cmd), report)
			return report.Err()
		},
	}
}

func changeRuntimeCmd() *cli.Command {
	return &cli.Command{
		Name:  "change-runtime",
		Usage: "Set the runtime version of every job cluster of matching jobs",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:     "runtime-version",
				Usage:    "Runtime key, e.g. 14.3.x-scala2.12",
				Required: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			sel, err := buildSelector(cmd)
			if err != nil {
				return err
			}

			logger := s.logging.Logger("Job Operations")
			updater := jobs.NewUpdater(s.api, logger)
			updater.FailFast = cmd.Bool("fail-fast")

			report, err := updater.ChangeRuntime(ctx, sel, cmd.String("runtime-version"))
			if err != nil {
				logger.Error().Err(err).Msg("failed to change runtime for jobs")
				return err
			}
			report.Log(logger)
			printReport(outWriter(cmd), report)
			return report.Err()
		},
	}
}

func changeCatalogCmd() *cli.Command {
	return &cli.Command{
		Name:    "change-catalog",
		Aliases: []string{"change-config"},
		Usage:   "Merge spark config entries into every job cluster of matching jobs",
		Flags: append(selectorFlags(),
			&cli.StringSliceFlag{
				Name:     "spark-config",
				Usage:    "key=value entry to merge (repeatable)",
				Required: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			additions, err := parseSparkConfig(cmd.StringSlice("spark-config"))
			if err != nil {
				return err
			}

			s, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			sel, err := buildSelector(cmd)
			if err != nil {
				return err
			}

			logger := s.logging.Logger("Job Operations")
			updater := jobs.NewUpdater(s.api, logger)
			updater.FailFast = cmd.Bool("fail-fast")

			report, err := updater.ChangeConfig(ctx, sel, additions)
			if err != nil {
				logger.Error().Err(err).Msg("failed to change default catalog for jobs")
				return err
			}
			report.Log(logger)
			printReport(outWriter(cmd), report)
			return report.Err()
		},
	}
}
