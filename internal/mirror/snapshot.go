// Package mirror contains the reconciliation core: the snapshot model, the
// local scanner, the snapshot diff and the engine that turns diffs into
// remote operations.
package mirror

import (
	"path"
	"sort"
	"strings"
	"time"
)

type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Entry is one local filesystem object inside a Snapshot.
type Entry struct {
	Path        string    `db:"path"`
	Kind        Kind      `db:"kind"`
	Size        int64     `db:"size"`        // files only
	Fingerprint string    `db:"fingerprint"` // content hash, files only
	ModTime     time.Time `db:"-"`
}

func (e *Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Snapshot is a point-in-time record of the local tree: normalized relative
// path -> entry. The root itself is implicit and never stored. Every
// ancestor directory of a file entry is present; Add synthesizes them.
// Snapshots are built once by the scanner and read-only afterwards.
type Snapshot struct {
	entries map[string]*Entry
}

func NewSnapshot() *Snapshot {
	return &Snapshot{entries: make(map[string]*Entry)}
}

// NormalizePath maps any relative path spelling onto the canonical
// POSIX-style form used as snapshot key.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Add inserts an entry, normalizing its path and synthesizing any missing
// ancestor directory entries.
func (s *Snapshot) Add(e *Entry) {
	p := NormalizePath(e.Path)
	if p == "" || p == "." {
		return
	}
	e.Path = p
	s.entries[p] = e

	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, ok := s.entries[dir]; ok {
			continue
		}
		s.entries[dir] = &Entry{Path: dir, Kind: KindDir}
	}
}

func (s *Snapshot) Get(p string) (*Entry, bool) {
	e, ok := s.entries[NormalizePath(p)]
	return e, ok
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Paths returns all entry paths in lexicographic order, which also places
// every directory before its contents.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether two snapshots describe the same tree with the same
// file fingerprints. ModTime is deliberately ignored; it is a prefilter
// input, not part of identity.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for p, e := range s.entries {
		o, ok := other.entries[p]
		if !ok || o.Kind != e.Kind || o.Size != e.Size || o.Fingerprint != e.Fingerprint {
			return false
		}
	}
	return true
}

// depth is the nesting level of a snapshot path: "a" -> 0, "a/b" -> 1.
func depth(p string) int {
	return strings.Count(p, "/")
}
