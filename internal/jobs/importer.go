package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/rs/zerolog"
)

// Importer creates a new job for every JSON document in a directory.
type Importer struct {
	api    workspace.API
	logger zerolog.Logger

	// FailFast stops the batch at the first failing file.
	FailFast bool
}

func NewImporter(api workspace.API, logger zerolog.Logger) *Importer {
	return &Importer{api: api, logger: logger}
}

// Import submits each *.json file in dir verbatim to the create endpoint.
// Documents are not validated locally; malformed ones fail at the API.
// Files are processed in directory listing order.
func (i *Importer) Import(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read import dir %s: %w", dir, err)
	}

	report := newReport("import")
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		path := filepath.Join(dir, entry.Name())
		i.logger.Info().Str("file", path).Msg("processing file")

		jobID, err := i.importFile(ctx, path)
		if err == nil {
			i.logger.Info().Str("file", path).Int64("job_id", jobID).Msg("job created")
		}
		report.add(Outcome{JobID: jobID, Name: entry.Name(), Detail: path, Err: err})
		if err != nil && i.FailFast {
			break
		}
	}
	return report, nil
}

func (i *Importer) importFile(ctx context.Context, path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	jobID, err := i.api.CreateJob(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return jobID, nil
}
