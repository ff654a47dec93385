package mirror

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// SkipList holds paths permanently excluded from reconciliation for the
// lifetime of the process, e.g. names the remote store mangles. In-memory
// only: a restart retries each path once.
type SkipList struct {
	paths mapset.Set[string]
}

func NewSkipList() *SkipList {
	return &SkipList{paths: mapset.NewSet[string]()}
}

// Add marks a path skipped and reports whether it was newly added, so the
// caller can warn exactly once.
func (s *SkipList) Add(p string) bool {
	return s.paths.Add(NormalizePath(p))
}

func (s *SkipList) Contains(p string) bool {
	return s.paths.Contains(NormalizePath(p))
}

func (s *SkipList) Len() int {
	return s.paths.Cardinality()
}
