package workspace

import (
	"slices"
	"strings"
)

// Runtime is a platform runtime as listed by clusters/spark-versions.
type Runtime struct {
	Key  string `json:"key" yaml:"key"`
	Name string `json:"name,omitempty" yaml:"name"`
}

// SortRuntimes returns a copy of rs sorted by key, descending, using plain
// string comparison. "9.1.x-scala2.12" therefore sorts before
// "14.3.x-scala2.12"; callers have relied on this order.
func SortRuntimes(rs []Runtime) []Runtime {
	sorted := slices.Clone(rs)
	slices.SortStableFunc(sorted, func(a, b Runtime) int {
		return strings.Compare(b.Key, a.Key)
	})
	return sorted
}

// FilterRuntimes keeps the runtimes whose key contains every substring.
func FilterRuntimes(rs []Runtime, substrings ...string) []Runtime {
	var out []Runtime
	for _, r := range rs {
		keep := true
		for _, s := range substrings {
			if !strings.Contains(r.Key, s) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}
