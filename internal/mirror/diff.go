package mirror

import (
	"path"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// DiffOptions tune the diff without making it impure: the same inputs and
// options always yield the same intent sequence.
type DiffOptions struct {
	// PruneEmptyDirs excludes directories without any file descendants from
	// the mirrored set, so empty local folders are never created remotely
	// and folders whose last file vanished are deleted.
	PruneEmptyDirs bool

	// Skip marks paths excluded from reconciliation entirely, e.g. paths
	// the remote store is known to mangle.
	Skip func(p string) bool
}

// Diff computes the ordered remote operations that converge the remote
// store from the state described by oldSnap to the one described by
// newSnap. A nil snapshot is treated as empty.
//
// Ordering: replacement deletes (a path whose kind flipped) come first,
// then MkDirs sorted parent-before-child, then Uploads, then Deletes with
// entries covered by a recursively-deleted ancestor folder pruned away.
func Diff(oldSnap, newSnap *Snapshot, opts DiffOptions) []Intent {
	oldEntries := snapshotEntries(oldSnap)
	newEntries := snapshotEntries(newSnap)
	if opts.PruneEmptyDirs {
		// Both sides, or a persistently empty folder would sit in the
		// committed snapshot and diff to the same delete every cycle.
		oldEntries = withoutEmptyDirs(oldEntries)
		newEntries = withoutEmptyDirs(newEntries)
	}

	all := mapset.NewThreadUnsafeSet[string]()
	for p := range oldEntries {
		all.Add(p)
	}
	for p := range newEntries {
		all.Add(p)
	}

	var replacements, mkdirs, uploads, removals []Intent

	all.Each(func(p string) bool {
		if opts.Skip != nil && opts.Skip(p) {
			return false
		}

		oldE, inOld := oldEntries[p]
		newE, inNew := newEntries[p]

		switch {
		case inNew && !inOld:
			if newE.IsDir() {
				mkdirs = append(mkdirs, Intent{Op: OpMkDir, Path: p, Entry: newE})
			} else {
				uploads = append(uploads, Intent{Op: OpUpload, Path: p, Entry: newE})
			}

		case inOld && !inNew:
			removals = append(removals, Intent{Op: OpDelete, Path: p, Entry: oldE})

		case oldE.Kind != newE.Kind:
			// Kind flipped; remove the old object before recreating it.
			replacements = append(replacements, Intent{Op: OpDelete, Path: p, Entry: oldE})
			if newE.IsDir() {
				mkdirs = append(mkdirs, Intent{Op: OpMkDir, Path: p, Entry: newE})
			} else {
				uploads = append(uploads, Intent{Op: OpUpload, Path: p, Entry: newE})
			}

		case !newE.IsDir() && newE.Fingerprint != oldE.Fingerprint:
			uploads = append(uploads, Intent{Op: OpUpload, Path: p, Entry: newE})
		}
		return false
	})

	sort.Slice(replacements, func(i, j int) bool { return replacements[i].Path < replacements[j].Path })
	sort.Slice(mkdirs, func(i, j int) bool {
		di, dj := depth(mkdirs[i].Path), depth(mkdirs[j].Path)
		if di != dj {
			return di < dj
		}
		return mkdirs[i].Path < mkdirs[j].Path
	})
	sort.Slice(uploads, func(i, j int) bool { return uploads[i].Path < uploads[j].Path })

	removals = pruneCoveredDeletes(removals, replacements)
	sort.Slice(removals, func(i, j int) bool { return removals[i].Path < removals[j].Path })

	intents := make([]Intent, 0, len(replacements)+len(mkdirs)+len(uploads)+len(removals))
	intents = append(intents, replacements...)
	intents = append(intents, mkdirs...)
	intents = append(intents, uploads...)
	intents = append(intents, removals...)
	return intents
}

func snapshotEntries(s *Snapshot) map[string]*Entry {
	if s == nil {
		return nil
	}
	return s.entries
}

// withoutEmptyDirs drops directory entries that have no file anywhere
// beneath them.
func withoutEmptyDirs(entries map[string]*Entry) map[string]*Entry {
	keep := mapset.NewThreadUnsafeSet[string]()
	for p, e := range entries {
		if e.IsDir() {
			continue
		}
		keep.Add(p)
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			keep.Add(dir)
		}
	}

	filtered := make(map[string]*Entry, keep.Cardinality())
	for p, e := range entries {
		if keep.Contains(p) {
			filtered[p] = e
		}
	}
	return filtered
}

// pruneCoveredDeletes removes delete intents whose target lives under a
// folder that is itself being deleted; remote folder deletes are recursive.
func pruneCoveredDeletes(removals, replacements []Intent) []Intent {
	deletedDirs := mapset.NewThreadUnsafeSet[string]()
	for _, in := range removals {
		if in.Entry != nil && in.Entry.IsDir() {
			deletedDirs.Add(in.Path)
		}
	}
	for _, in := range replacements {
		if in.Entry != nil && in.Entry.IsDir() {
			deletedDirs.Add(in.Path)
		}
	}

	kept := make([]Intent, 0, len(removals))
	for _, in := range removals {
		if underDeletedDir(in.Path, deletedDirs) {
			continue
		}
		kept = append(kept, in)
	}
	return kept
}

func underDeletedDir(p string, deletedDirs mapset.Set[string]) bool {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if deletedDirs.Contains(dir) {
			return true
		}
	}
	return false
}
