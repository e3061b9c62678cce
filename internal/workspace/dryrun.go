package workspace

import (
	"context"

	"github.com/rs/zerolog"
)

// RecordedUpdate is an update a DryRun client would have sent.
type RecordedUpdate struct {
	JobID int64
	Patch SettingsPatch
}

// DryRun passes reads through to the wrapped API and records writes
// without sending them.
type DryRun struct {
	api    API
	logger zerolog.Logger

	Updates []RecordedUpdate
	Creates [][]byte
}

func NewDryRun(api API, logger zerolog.Logger) *DryRun {
	return &DryRun{api: api, logger: logger}
}

func (d *DryRun) ListRuntimes(ctx context.Context) ([]Runtime, error) {
	return d.api.ListRuntimes(ctx)
}

func (d *DryRun) ListJobs(ctx context.Context) ([]Job, error) {
	return d.api.ListJobs(ctx)
}

func (d *DryRun) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	return d.api.GetJob(ctx, jobID)
}

func (d *DryRun) UpdateJob(_ context.Context, jobID int64, patch SettingsPatch) error {
	d.logger.Info().Int64("job_id", jobID).Int("job_clusters", len(patch.JobClusters)).Msg("dry run: skipping update")
	d.Updates = append(d.Updates, RecordedUpdate{JobID: jobID, Patch: patch})
	return nil
}

// CreateJob records the body and returns 0, since no id is assigned.
func (d *DryRun) CreateJob(_ context.Context, body []byte) (int64, error) {
	d.logger.Info().Int("bytes", len(body)).Msg("dry run: skipping create")
	d.Creates = append(d.Creates, body)
	return 0, nil
}
