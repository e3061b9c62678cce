package jobs_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/mattkinnersley/dbxjobs/internal/emulator"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/rs/zerolog"
)

const testOwner = "owner@example.com"

// startWorkspace serves an emulator over store and returns a client for it.
func startWorkspace(t *testing.T, store *emulator.Store) *workspace.Client {
	t.Helper()
	srv := httptest.NewServer(emulator.New(store, "test-token", testOwner, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	client := workspace.NewClient(srv.URL, "test-token", 0, zerolog.Nop())
	client.SetPageSize(2)
	return client
}

func settings(name string, clusters ...map[string]any) map[string]any {
	s := map[string]any{
		"name":                name,
		"max_concurrent_runs": 1,
		"tasks":               []any{map[string]any{"task_key": "main", "job_cluster_key": "cluster_0"}},
	}
	if len(clusters) > 0 {
		jcs := make([]any, 0, len(clusters))
		for i, c := range clusters {
			jcs = append(jcs, map[string]any{
				"job_cluster_key": fmt.Sprintf("cluster_%d", i),
				"new_cluster":     c,
			})
		}
		s["job_clusters"] = jcs
	}
	return s
}

// fakeAPI is an in-process API with per-job failure injection.
type fakeAPI struct {
	jobs      []workspace.Job
	details   map[int64]*workspace.Job
	getErr    map[int64]error
	updateErr map[int64]error
	createErr error
	listErr   error

	updates []updateCall
	creates [][]byte
}

type updateCall struct {
	jobID int64
	patch workspace.SettingsPatch
}

func newFakeAPI(jobs ...workspace.Job) *fakeAPI {
	f := &fakeAPI{
		details:   map[int64]*workspace.Job{},
		getErr:    map[int64]error{},
		updateErr: map[int64]error{},
	}
	for _, j := range jobs {
		f.jobs = append(f.jobs, workspace.Job{JobID: j.JobID, CreatorUserName: j.CreatorUserName, Settings: workspace.JobSettings{Name: j.Settings.Name}})
		detail := j
		f.details[j.JobID] = &detail
	}
	return f
}

func (f *fakeAPI) ListRuntimes(context.Context) ([]workspace.Runtime, error) {
	return nil, nil
}

func (f *fakeAPI) ListJobs(context.Context) ([]workspace.Job, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs, nil
}

func (f *fakeAPI) GetJob(_ context.Context, id int64) (*workspace.Job, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	job, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("job %d not found", id)
	}
	return job, nil
}

func (f *fakeAPI) UpdateJob(_ context.Context, id int64, patch workspace.SettingsPatch) error {
	if err := f.updateErr[id]; err != nil {
		return err
	}
	f.updates = append(f.updates, updateCall{jobID: id, patch: patch})
	return nil
}

func (f *fakeAPI) CreateJob(_ context.Context, body []byte) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.creates = append(f.creates, body)
	return int64(1000 + len(f.creates)), nil
}
