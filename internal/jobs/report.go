package jobs

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Outcome is the result of one job (or one file) in a batch.
type Outcome struct {
	JobID   int64
	Name    string
	Detail  string
	Skipped bool
	Err     error
}

// Report collects the outcomes of a batch. Failures of single jobs are
// recorded here instead of aborting the batch.
type Report struct {
	Action   string
	Outcomes []Outcome
}

func newReport(action string) *Report {
	return &Report{Action: action}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) Succeeded() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Err == nil && !o.Skipped })
}

func (r *Report) Failed() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Err != nil })
}

func (r *Report) Skipped() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Skipped })
}

func (r *Report) filter(keep func(Outcome) bool) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Err joins the errors of every failed outcome. It is nil when nothing failed.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s %s (job %d): %w", r.Action, o.Name, o.JobID, o.Err))
	}
	return errors.Join(errs...)
}

// Log writes one summary line and one line per failure.
func (r *Report) Log(logger zerolog.Logger) {
	failed := r.Failed()
	for _, o := range failed {
		logger.Error().Err(o.Err).Int64("job_id", o.JobID).Str("name", o.Name).Msgf("%s failed", r.Action)
	}
	event := logger.Info()
	if len(failed) > 0 {
		event = logger.Warn()
	}
	event.
		Int("succeeded", len(r.Succeeded())).
		Int("skipped", len(r.Skipped())).
		Int("failed", len(failed)).
		Msgf("%s finished", r.Action)
}
