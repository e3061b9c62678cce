package emulator

import (
	"fmt"
	"os"

	"github.com/mattkinnersley/dbxjobs/internal/workspace"
	"gopkg.in/yaml.v3"
)

// SeedJob is a job definition in the seed file.
type SeedJob struct {
	CreatorUserName string         `yaml:"creator_user_name"`
	Settings        map[string]any `yaml:"settings"`
}

// Seed is the emulator's initial content.
type Seed struct {
	Runtimes []workspace.Runtime `yaml:"runtimes"`
	Jobs     []SeedJob           `yaml:"jobs"`
}

// LoadSeed reads a YAML seed file. A missing file yields an empty seed.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No seed file is fine - jobs can be created via the API
			return &Seed{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &seed, nil
}

// Apply loads the seed into store and returns the ids of the created jobs.
func (s *Seed) Apply(store *Store, defaultCreator string) []int64 {
	if len(s.Runtimes) > 0 {
		store.SetRuntimes(s.Runtimes)
	}
	ids := make([]int64, 0, len(s.Jobs))
	for _, sj := range s.Jobs {
		creator := sj.CreatorUserName
		if creator == "" {
			creator = defaultCreator
		}
		job := store.CreateJob(creator, sj.Settings)
		ids = append(ids, job.JobID)
	}
	return ids
}
