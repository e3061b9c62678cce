package jobs_test

import (
	"encoding/json"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/mattkinnersley/dbxjobs/internal/jobs"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"gotest.tools/v3/assert"
)

func TestStripForExport(t *testing.T) {
	doc := workspace.Document{
		"job_id":            json.Number("11"),
		"created_time":      json.Number("1700000000000"),
		"creator_user_name": "me@example.com",
		"name":              "top-level",
		"settings": map[string]any{
			"name":                "gc-test-a",
			"max_concurrent_runs": json.Number("1"),
			"tags":                map[string]any{"team": "data"},
		},
	}

	got := jobs.StripForExport(doc)

	assert.DeepEqual(t, got, workspace.Document{
		"creator_user_name":   "me@example.com",
		"name":                "gc-test-a",
		"max_concurrent_runs": json.Number("1"),
		"tags":                map[string]any{"team": "data"},
	})
	if _, ok := doc["job_id"]; !ok {
		t.Error("input document was modified")
	}
}

func TestStripForExportIsIdempotent(t *testing.T) {
	doc := workspace.Document{
		"job_id":       json.Number("11"),
		"created_time": json.Number("1"),
		"settings":     map[string]any{"name": "gc-test-a"},
	}

	once := jobs.StripForExport(doc)
	twice := jobs.StripForExport(once)

	assert.DeepEqual(t, once, twice)
	for _, k := range []string{"job_id", "created_time", "settings"} {
		if _, ok := twice[k]; ok {
			t.Errorf("%s reintroduced: %s", k, spew.Sdump(twice))
		}
	}
}

func TestStripForExportWithoutSettings(t *testing.T) {
	got := jobs.StripForExport(workspace.Document{"job_id": json.Number("1"), "name": "x"})
	assert.DeepEqual(t, got, workspace.Document{"name": "x"})
}

func clusters(specs ...workspace.ClusterSpec) []workspace.JobCluster {
	out := make([]workspace.JobCluster, 0, len(specs))
	for i, s := range specs {
		out = append(out, workspace.JobCluster{JobClusterKey: string(rune('a' + i)), NewCluster: s})
	}
	return out
}

func TestApplyRuntimeChange(t *testing.T) {
	in := clusters(
		workspace.ClusterSpec{SparkVersion: "12.2.x-scala2.12", DataSecurityMode: workspace.SecurityModeNone, Other: map[string]any{"num_workers": 2}},
		workspace.ClusterSpec{SparkVersion: "14.3.x-scala2.12", DataSecurityMode: workspace.SecurityModeSingleUser},
		workspace.ClusterSpec{},
	)

	out := jobs.ApplyRuntimeChange(in, "15.4.x-scala2.12")

	assert.Equal(t, len(out), 3)
	for i, c := range out {
		assert.Equal(t, c.NewCluster.SparkVersion, "15.4.x-scala2.12")
		assert.Equal(t, c.NewCluster.DataSecurityMode, workspace.SecurityModeSingleUser)
		assert.Equal(t, c.JobClusterKey, in[i].JobClusterKey)
	}
	assert.DeepEqual(t, out[0].NewCluster.Other, map[string]any{"num_workers": 2})
	assert.Equal(t, in[0].NewCluster.SparkVersion, "12.2.x-scala2.12")
	assert.Equal(t, in[0].NewCluster.DataSecurityMode, workspace.SecurityModeNone)
}

func TestApplyRuntimeChangeNoClusters(t *testing.T) {
	assert.Equal(t, len(jobs.ApplyRuntimeChange(nil, "15.4.x-scala2.12")), 0)
	assert.Equal(t, len(jobs.ApplyConfigMerge(nil, map[string]string{"a": "1"})), 0)
}

func TestApplyConfigMergeIsRightBiased(t *testing.T) {
	in := clusters(workspace.ClusterSpec{SparkConf: map[string]any{"a": "1", "b": "2"}})

	out := jobs.ApplyConfigMerge(in, map[string]string{"b": "3", "c": "4"})

	assert.DeepEqual(t, out[0].NewCluster.SparkConf, map[string]any{"a": "1", "b": "3", "c": "4"})
	assert.DeepEqual(t, in[0].NewCluster.SparkConf, map[string]any{"a": "1", "b": "2"})
}

func TestApplyConfigMergeAbsentConfig(t *testing.T) {
	additions := map[string]string{"spark.databricks.sql.initial.catalog.name": "hive_metastore"}
	in := clusters(workspace.ClusterSpec{SparkVersion: "14.3.x-scala2.12"})

	out := jobs.ApplyConfigMerge(in, additions)

	assert.DeepEqual(t, out[0].NewCluster.SparkConf, map[string]any{"spark.databricks.sql.initial.catalog.name": "hive_metastore"})
	if in[0].NewCluster.SparkConf != nil {
		t.Errorf("input modified: %s", spew.Sdump(in))
	}

	// the cluster holds a copy, not the caller's map
	out[0].NewCluster.SparkConf["extra"] = "x"
	assert.Equal(t, len(additions), 1)
}

func TestApplyConfigMergeEmptyAdditionsIsNoOp(t *testing.T) {
	in := clusters(
		workspace.ClusterSpec{SparkConf: map[string]any{"a": "1"}},
		workspace.ClusterSpec{SparkVersion: "14.3.x-scala2.12"},
		workspace.ClusterSpec{SparkConf: map[string]any{}},
	)

	out := jobs.ApplyConfigMerge(in, map[string]string{})

	assert.DeepEqual(t, out, in)
	if out[1].NewCluster.SparkConf != nil {
		t.Errorf("absent spark_conf became present: %s", spew.Sdump(out[1]))
	}
	if out[2].NewCluster.SparkConf == nil {
		t.Errorf("empty spark_conf became absent: %s", spew.Sdump(out[2]))
	}
}

func TestApplyConfigMergeKeepsValueTypes(t *testing.T) {
	in := clusters(workspace.ClusterSpec{SparkConf: map[string]any{
		"spark.databricks.delta.preview.enabled": true,
		"spark.memory.fraction":                  json.Number("0.6"),
	}})

	out := jobs.ApplyConfigMerge(in, map[string]string{"spark.databricks.sql.initial.catalog.name": "main"})

	assert.DeepEqual(t, out[0].NewCluster.SparkConf, map[string]any{
		"spark.databricks.delta.preview.enabled":    true,
		"spark.memory.fraction":                     json.Number("0.6"),
		"spark.databricks.sql.initial.catalog.name": "main",
	})

	data, err := json.Marshal(out[0].NewCluster)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var sent map[string]map[string]any
	if err := json.Unmarshal(data, &sent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	assert.Equal(t, sent["spark_conf"]["spark.databricks.delta.preview.enabled"], true)
	assert.Equal(t, sent["spark_conf"]["spark.memory.fraction"], 0.6)
}
