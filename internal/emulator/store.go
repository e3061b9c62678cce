package emulator

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mattkinnersley/dbxjobs/internal/workspace"
)

// Job is a job held by the emulator.
type Job struct {
	JobID           int64
	CreatorUserName string
	CreatedTime     int64
	Settings        map[string]any
}

// Document renders the job the way jobs/get and jobs/list return it.
func (j Job) Document() map[string]any {
	return map[string]any{
		"job_id":            j.JobID,
		"creator_user_name": j.CreatorUserName,
		"created_time":      j.CreatedTime,
		"settings":          j.Settings,
	}
}

// Store is a thread-safe in-memory store for jobs and runtimes.
// Reads return copies; top-level settings are replaced, never mutated.
type Store struct {
	mu       sync.RWMutex
	jobs     map[int64]*Job
	runtimes []workspace.Runtime
	nextID   int64
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs:   make(map[int64]*Job),
		nextID: 1,
		now:    time.Now,
	}
}

// SetRuntimes replaces the runtime catalog.
func (s *Store) SetRuntimes(rs []workspace.Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimes = slices.Clone(rs)
}

// Runtimes returns the runtime catalog in insertion order.
func (s *Store) Runtimes() []workspace.Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.runtimes)
}

// CreateJob stores a new job and assigns it the next id.
func (s *Store) CreateJob(creator string, settings map[string]any) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &Job{
		JobID:           s.nextID,
		CreatorUserName: creator,
		CreatedTime:     s.now().UnixMilli(),
		Settings:        maps.Clone(settings),
	}
	if job.Settings == nil {
		job.Settings = make(map[string]any)
	}
	s.nextID++
	s.jobs[job.JobID] = job
	return *job
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(id int64) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %d does not exist", id)
	}
	return *job, nil
}

// UpdateJob replaces the top-level settings present in newSettings and
// leaves the others untouched.
func (s *Store) UpdateJob(id int64, newSettings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %d does not exist", id)
	}
	settings := maps.Clone(job.Settings)
	maps.Copy(settings, newSettings)
	job.Settings = settings
	return nil
}

// DeleteJob removes a job by id.
func (s *Store) DeleteJob(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job %d does not exist", id)
	}
	delete(s.jobs, id)
	return nil
}

// ListJobs returns all jobs ordered by id.
func (s *Store) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	slices.SortFunc(jobs, func(a, b Job) int {
		return cmp.Compare(a.JobID, b.JobID)
	})
	return jobs
}
