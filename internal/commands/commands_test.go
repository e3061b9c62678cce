package commands_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mattkinnersley/dbxjobs/internal/commands"
	"github.com/mattkinnersley/dbxjobs/internal/config"
	"github.com/mattkinnersley/dbxjobs/internal/emulator"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WORKSPACE_URL", "TOKEN", "DBXJOBS_WORKSPACE_URL", "DBXJOBS_WORKSPACE_TOKEN", "DBXJOBS_CONFIG_PATH"} {
		t.Setenv(k, "")
	}
}

// run executes the CLI and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := commands.App()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	full := append([]string{"dbxjobs", "--log-dir", t.TempDir()}, args...)
	err := app.Run(context.Background(), full)
	return stdout.String(), err
}

func startEmulator(t *testing.T, store *emulator.Store) string {
	t.Helper()
	srv := httptest.NewServer(emulator.New(store, "secret", "owner@example.com", zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestMissingTokenSendsNothing(t *testing.T) {
	isolateEnv(t)
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	for _, args := range [][]string{
		{"runtimes"},
		{"export", "--name-prefix", "gc-test"},
		{"change-runtime", "--runtime-version", "15.4.x-scala2.12"},
	} {
		_, err := run(t, append([]string{"--workspace-url", srv.URL}, args...)...)
		assert.ErrorIs(t, err, config.ErrMissingValue, "args %v", args)
	}
	assert.Equal(t, int(requests.Load()), 0)
}

func TestRuntimesOutput(t *testing.T) {
	isolateEnv(t)
	store := emulator.NewStore()
	store.SetRuntimes([]workspace.Runtime{
		{Key: "14.3.x-scala2.12", Name: "14.3 LTS"},
		{Key: "9.1.x-scala2.12", Name: "9.1 LTS"},
		{Key: "14.3.x-photon-scala2.12", Name: "14.3 LTS Photon"},
	})
	url := startEmulator(t, store)

	out, err := run(t, "--workspace-url", url, "--token", "secret", "runtimes")
	assert.NilError(t, err)
	assert.Equal(t, out, "9.1.x-scala2.12\t9.1 LTS\n14.3.x-scala2.12\t14.3 LTS\n14.3.x-photon-scala2.12\t14.3 LTS Photon\n")

	out, err = run(t, "--workspace-url", url, "--token", "secret", "runtimes", "--contains", "gpu")
	assert.NilError(t, err)
	assert.Equal(t, out, "No runtimes found.\n")
}

func TestExportImportRoundTrip(t *testing.T) {
	isolateEnv(t)
	store := emulator.NewStore()
	store.CreateJob("owner@example.com", map[string]any{"name": "gc-test-a", "max_concurrent_runs": 1})
	store.CreateJob("owner@example.com", map[string]any{"name": "gc-test-b"})
	store.CreateJob("owner@example.com", map[string]any{"name": "other"})
	url := startEmulator(t, store)
	dir := t.TempDir()

	out, err := run(t, "--workspace-url", url, "--token", "secret", "export", "--name-prefix", "gc-test", "--export-dir", dir)
	assert.NilError(t, err)
	assert.Equal(t, strings.Count(out, "OK\t"), 2)

	entries, err := os.ReadDir(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 2)

	out, err = run(t, "--workspace-url", url, "--token", "secret", "import", "--import-dir", dir)
	assert.NilError(t, err)
	assert.Equal(t, strings.Count(out, "OK\t"), 2)

	all := store.ListJobs()
	assert.Equal(t, len(all), 5)
	for _, j := range all[3:] {
		assert.Assert(t, j.JobID > 3)
		assert.Assert(t, strings.HasPrefix(j.Settings["name"].(string), "gc-test"))
	}
}

func TestChangeCommands(t *testing.T) {
	isolateEnv(t)
	store := emulator.NewStore()
	job := store.CreateJob("owner@example.com", map[string]any{
		"name": "gc-test-a",
		"job_clusters": []any{map[string]any{
			"job_cluster_key": "main",
			"new_cluster":     map[string]any{"spark_version": "13.3.x-scala2.12"},
		}},
	})
	store.CreateJob("owner@example.com", map[string]any{"name": "gc-test-empty"})
	url := startEmulator(t, store)
	client := workspace.NewClient(url, "secret", 0, zerolog.Nop())

	out, err := run(t, "--workspace-url", url, "--token", "secret", "change-runtime", "--name-prefix", "gc-test", "--runtime-version", "15.4.x-scala2.12")
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(out, "SKIPPED\t2\tgc-test-empty"))

	_, err = run(t, "--workspace-url", url, "--token", "secret", "change-catalog", "--name-prefix", "gc-test",
		"--spark-config", "spark.databricks.sql.initial.catalog.name=hive_metastore")
	assert.NilError(t, err)

	got, err := client.GetJob(context.Background(), job.JobID)
	assert.NilError(t, err)
	spec := got.Settings.JobClusters[0].NewCluster
	assert.Equal(t, spec.SparkVersion, "15.4.x-scala2.12")
	assert.Equal(t, spec.DataSecurityMode, workspace.SecurityModeSingleUser)
	assert.DeepEqual(t, spec.SparkConf, map[string]any{"spark.databricks.sql.initial.catalog.name": "hive_metastore"})
}

func TestDryRunLeavesJobsUntouched(t *testing.T) {
	isolateEnv(t)
	store := emulator.NewStore()
	store.CreateJob("owner@example.com", map[string]any{
		"name": "gc-test-a",
		"job_clusters": []any{map[string]any{
			"job_cluster_key": "main",
			"new_cluster":     map[string]any{"spark_version": "13.3.x-scala2.12"},
		}},
	})
	url := startEmulator(t, store)
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "x.json"), []byte(`{"name":"x"}`), 0o644))

	_, err := run(t, "--workspace-url", url, "--token", "secret", "--dry-run", "change-runtime", "--runtime-version", "15.4.x-scala2.12")
	assert.NilError(t, err)
	_, err = run(t, "--workspace-url", url, "--token", "secret", "--dry-run", "import", "--import-dir", dir)
	assert.NilError(t, err)

	all := store.ListJobs()
	assert.Equal(t, len(all), 1)
	cluster := all[0].Settings["job_clusters"].([]any)[0].(map[string]any)
	assert.Equal(t, cluster["new_cluster"].(map[string]any)["spark_version"], "13.3.x-scala2.12")
}

func TestInvalidSparkConfig(t *testing.T) {
	isolateEnv(t)

	_, err := run(t, "--workspace-url", "http://127.0.0.1:1", "--token", "x", "change-catalog", "--spark-config", "novalue")

	assert.ErrorContains(t, err, "expected key=value")
}

func TestFailedJobsFailTheCommand(t *testing.T) {
	isolateEnv(t)
	url := startEmulator(t, emulator.NewStore())
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{broken`), 0o644))

	out, err := run(t, "--workspace-url", url, "--token", "secret", "import", "--import-dir", dir)

	assert.ErrorContains(t, err, "import bad.json")
	assert.Assert(t, strings.HasPrefix(out, "FAILED\t0\tbad.json"))
}
