package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Document is a job document as returned by the API, kept untyped so that
// fields this package does not model survive export.
type Document map[string]any

// SecurityMode is the data security mode of a cluster.
type SecurityMode string

const (
	SecurityModeSingleUser    SecurityMode = "SINGLE_USER"
	SecurityModeUserIsolation SecurityMode = "USER_ISOLATION"
	SecurityModeNone          SecurityMode = "NONE"
)

// Job is a job summary or detail. Document is only populated by GetJob.
type Job struct {
	JobID           int64       `json:"job_id"`
	CreatorUserName string      `json:"creator_user_name,omitempty"`
	CreatedTime     int64       `json:"created_time,omitempty"`
	Settings        JobSettings `json:"settings"`

	Document Document `json:"-"`
}

// Name returns the job's settings name.
func (j Job) Name() string {
	return j.Settings.Name
}

type JobSettings struct {
	Name        string       `json:"name"`
	JobClusters []JobCluster `json:"job_clusters,omitempty"`
}

// SettingsPatch is the new_settings payload of an update. It only carries
// job_clusters so the update leaves every other setting alone.
type SettingsPatch struct {
	JobClusters []JobCluster `json:"job_clusters"`
}

type JobCluster struct {
	JobClusterKey string      `json:"job_cluster_key"`
	NewCluster    ClusterSpec `json:"new_cluster"`
}

// ClusterSpec is the typed view over a new_cluster object. Fields that are
// not modelled are kept in Other and written back on marshal.
// A nil SparkConf means spark_conf is absent, which is not the same as empty.
// SparkConf values keep their JSON type.
type ClusterSpec struct {
	SparkVersion     string         `mapstructure:"spark_version"`
	DataSecurityMode SecurityMode   `mapstructure:"data_security_mode"`
	SparkConf        map[string]any `mapstructure:"spark_conf"`
	Other            map[string]any `mapstructure:",remain"`
}

// Typed keys that are written back from Other when present but empty.
var emptyPassthroughKeys = []string{"spark_version", "data_security_mode"}

// DecodeClusterSpec builds a ClusterSpec from a generic new_cluster object.
func DecodeClusterSpec(raw map[string]any) (ClusterSpec, error) {
	var spec ClusterSpec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &spec,
	})
	if err != nil {
		return ClusterSpec{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return ClusterSpec{}, fmt.Errorf("decode cluster spec: %w", err)
	}
	for _, key := range emptyPassthroughKeys {
		if v, ok := raw[key]; ok && v == "" {
			if spec.Other == nil {
				spec.Other = make(map[string]any)
			}
			spec.Other[key] = v
		}
	}
	return spec, nil
}

// Map returns the generic form of the spec.
func (c ClusterSpec) Map() map[string]any {
	m := make(map[string]any, len(c.Other)+3)
	for k, v := range c.Other {
		m[k] = v
	}
	if c.SparkVersion != "" {
		m["spark_version"] = c.SparkVersion
	}
	if c.DataSecurityMode != "" {
		m["data_security_mode"] = string(c.DataSecurityMode)
	}
	if c.SparkConf != nil {
		m["spark_conf"] = c.SparkConf
	}
	return m
}

func (c ClusterSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

func (c *ClusterSpec) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := decodeJSON(data, &raw); err != nil {
		return err
	}
	spec, err := DecodeClusterSpec(raw)
	if err != nil {
		return err
	}
	*c = spec
	return nil
}

// decodeJSON keeps numbers as json.Number so large ids round-trip exactly.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
