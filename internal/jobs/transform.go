package jobs

import (
	"maps"

	"github.com/jinzhu/copier"
	"github.com/mattkinnersley/dbxjobs/internal/workspace"
)

// StripForExport removes the server-assigned job_id and created_time and
// lifts the settings object one level up. Settings keys win over top-level
// keys of the same name. Nested objects are not merged.
func StripForExport(doc workspace.Document) workspace.Document {
	out := make(workspace.Document, len(doc))
	var settings map[string]any
	for k, v := range doc {
		switch k {
		case "job_id", "created_time":
			continue
		case "settings":
			if m, ok := asMap(v); ok {
				settings = m
				continue
			}
		}
		out[k] = v
	}
	for k, v := range settings {
		out[k] = v
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case workspace.Document:
		return m, true
	}
	return nil, false
}

// ApplyRuntimeChange sets the runtime version of every cluster and forces
// single user security mode. The input is not modified.
func ApplyRuntimeChange(clusters []workspace.JobCluster, version string) []workspace.JobCluster {
	out := cloneClusters(clusters)
	for i := range out {
		out[i].NewCluster.SparkVersion = version
		out[i].NewCluster.DataSecurityMode = workspace.SecurityModeSingleUser
	}
	return out
}

// ApplyConfigMerge merges additions into every cluster's spark_conf, with
// additions winning on conflicting keys. A cluster without spark_conf gets a
// copy of additions. The input is not modified.
func ApplyConfigMerge(clusters []workspace.JobCluster, additions map[string]string) []workspace.JobCluster {
	out := cloneClusters(clusters)
	if len(additions) == 0 {
		return out
	}
	for i := range out {
		spec := &out[i].NewCluster
		if spec.SparkConf == nil {
			spec.SparkConf = make(map[string]any, len(additions))
		}
		for k, v := range additions {
			spec.SparkConf[k] = v
		}
	}
	return out
}

func cloneClusters(clusters []workspace.JobCluster) []workspace.JobCluster {
	out := make([]workspace.JobCluster, 0, len(clusters))
	if len(clusters) == 0 {
		return out
	}
	if err := copier.CopyWithOption(&out, &clusters, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on type mismatches, which cannot happen here.
		panic(err)
	}
	// copier materialises nil maps; an absent spark_conf must stay absent.
	for i := range clusters {
		out[i].NewCluster.SparkConf = maps.Clone(clusters[i].NewCluster.SparkConf)
		if clusters[i].NewCluster.Other == nil {
			out[i].NewCluster.Other = nil
		}
	}
	return out
}
