package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/rs/zerolog"
)

// DefaultExportDir is where exported job documents go unless configured.
const DefaultExportDir = "./jobs_json"

// Exporter writes the configuration of selected jobs as JSON files, one per
// job, named after the job.
type Exporter struct {
	api    workspace.API
	dir    string
	logger zerolog.Logger

	// FailFast stops the batch at the first failing job.
	FailFast bool
}

func NewExporter(api workspace.API, dir string, logger zerolog.Logger) *Exporter {
	if dir == "" {
		dir = DefaultExportDir
	}
	return &Exporter{api: api, dir: dir, logger: logger}
}

// Export writes every job matched by sel, creating the export dir if needed.
// Existing files are overwritten; when two jobs share a name the last one wins.
func (e *Exporter) Export(ctx context.Context, sel Selector) (*Report, error) {
	all, err := e.api.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", e.dir, err)
	}

	report := newReport("export")
	for _, job := range Filter(all, sel) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		e.logger.Info().
			Int64("job_id", job.JobID).
			Str("name", job.Name()).
			Str("owner", job.CreatorUserName).
			Msg("saving config for job")

		path, err := e.exportJob(ctx, job.JobID, job.Name())
		report.add(Outcome{JobID: job.JobID, Name: job.Name(), Detail: path, Err: err})
		if err != nil && e.FailFast {
			break
		}
	}
	return report, nil
}

func (e *Exporter) exportJob(ctx context.Context, jobID int64, name string) (string, error) {
	job, err := e.api.GetJob(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("get job: %w", err)
	}

	data, err := json.MarshalIndent(StripForExport(job.Document), "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(e.dir, FileName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// FileName is the file a job with the given name is exported to. Path
// separators are replaced so that every job lands directly in the export dir.
func FileName(jobName string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(jobName)
	return name + ".json"
}
