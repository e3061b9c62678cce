package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/rs/zerolog"
)

var (
	ErrNoRuntimeVersion = errors.New("runtime version is required")
	ErrNoSparkConfig    = errors.New("at least one spark config entry is required")
)

// Updater rewrites the job clusters of selected jobs.
type Updater struct {
	api    workspace.API
	logger zerolog.Logger

	// FailFast stops the batch at the first failing job.
	FailFast bool
}

func NewUpdater(api workspace.API, logger zerolog.Logger) *Updater {
	return &Updater{api: api, logger: logger}
}

// ChangeRuntime moves every job cluster of the selected jobs to version and
// switches them to single user security mode. version is not checked
// against the workspace's runtime list.
func (u *Updater) ChangeRuntime(ctx context.Context, sel Selector, version string) (*Report, error) {
	if version == "" {
		return nil, ErrNoRuntimeVersion
	}
	return u.apply(ctx, sel, "change-runtime", func(clusters []workspace.JobCluster) []workspace.JobCluster {
		return ApplyRuntimeChange(clusters, version)
	})
}

// ChangeConfig merges additions into the spark_conf of every job cluster of
// the selected jobs.
func (u *Updater) ChangeConfig(ctx context.Context, sel Selector, additions map[string]string) (*Report, error) {
	if len(additions) == 0 {
		return nil, ErrNoSparkConfig
	}
	return u.apply(ctx, sel, "change-config", func(clusters []workspace.JobCluster) []workspace.JobCluster {
		return ApplyConfigMerge(clusters, additions)
	})
}

func (u *Updater) apply(ctx context.Context, sel Selector, action string, mutate func([]workspace.JobCluster) []workspace.JobCluster) (*Report, error) {
	all, err := u.api.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	report := newReport(action)
	for _, job := range Filter(all, sel) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger := u.logger.With().
			Int64("job_id", job.JobID).
			Str("name", job.Name()).
			Str("owner", job.CreatorUserName).
			Logger()
		logger.Info().Msgf("processing job for %s", action)

		outcome, err := u.updateJob(ctx, job.JobID, mutate)
		outcome.Name = job.Name()
		if outcome.Skipped {
			logger.Info().Msg("job has no job clusters, skipping")
		}
		report.add(outcome)
		if err != nil && u.FailFast {
			break
		}
	}
	return report, nil
}

// updateJob sends a single update per job, so a job is either fully
// updated or left untouched.
func (u *Updater) updateJob(ctx context.Context, jobID int64, mutate func([]workspace.JobCluster) []workspace.JobCluster) (Outcome, error) {
	outcome := Outcome{JobID: jobID}

	job, err := u.api.GetJob(ctx, jobID)
	if err != nil {
		outcome.Err = fmt.Errorf("get job: %w", err)
		return outcome, outcome.Err
	}
	if len(job.Settings.JobClusters) == 0 {
		outcome.Skipped = true
		return outcome, nil
	}

	clusters := mutate(job.Settings.JobClusters)
	if err := u.api.UpdateJob(ctx, jobID, workspace.SettingsPatch{JobClusters: clusters}); err != nil {
		outcome.Err = fmt.Errorf("update job: %w", err)
		return outcome, outcome.Err
	}
	outcome.Detail = fmt.Sprintf("%d job clusters updated", len(clusters))
	return outcome, nil
}
