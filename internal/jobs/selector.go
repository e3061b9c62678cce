package jobs

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
)

// Selector decides whether a job takes part in a batch.
type Selector func(job workspace.Job) bool

// NamePrefix matches jobs whose name starts with prefix. The match is case
// sensitive and the empty prefix matches every job.
func NamePrefix(prefix string) Selector {
	return func(job workspace.Job) bool {
		return strings.HasPrefix(job.Name(), prefix)
	}
}

// Owner matches jobs created by the given user.
func Owner(owner string) Selector {
	return func(job workspace.Job) bool {
		return job.CreatorUserName == owner
	}
}

// IDs matches jobs whose id is one of ids.
func IDs(ids ...int64) Selector {
	set := mapset.NewThreadUnsafeSet(ids...)
	return func(job workspace.Job) bool {
		return set.Contains(job.JobID)
	}
}

// All matches jobs that every selector matches. With no selectors it
// matches everything.
func All(selectors ...Selector) Selector {
	return func(job workspace.Job) bool {
		for _, sel := range selectors {
			if sel != nil && !sel(job) {
				return false
			}
		}
		return true
	}
}

// Filter returns the jobs matched by sel, in their original order. A nil
// selector matches every job.
func Filter(jobs []workspace.Job, sel Selector) []workspace.Job {
	matched := make([]workspace.Job, 0, len(jobs))
	for _, job := range jobs {
		if sel == nil || sel(job) {
			matched = append(matched, job)
		}
	}
	return matched
}
