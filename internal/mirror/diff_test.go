package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(p, sum string) *Entry {
	return &Entry{Path: p, Kind: KindFile, Size: int64(len(sum)), Fingerprint: sum}
}

func dir(p string) *Entry {
	return &Entry{Path: p, Kind: KindDir}
}

func snapOf(entries ...*Entry) *Snapshot {
	s := NewSnapshot()
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// ops flattens intents into comparable "Op path" strings, preserving order.
func ops(intents []Intent) []string {
	out := make([]string, 0, len(intents))
	for _, in := range intents {
		out = append(out, in.Op.String()+" "+in.Path)
	}
	return out
}

func TestDiffInitialUpload(t *testing.T) {
	intents := Diff(nil, snapOf(file("a/b.txt", "v1")), DiffOptions{})

	assert.Equal(t, []string{
		"MkDir a",
		"Upload a/b.txt",
	}, ops(intents))
}

func TestDiffNoChanges(t *testing.T) {
	snap := snapOf(file("a/b.txt", "v1"))
	assert.Empty(t, Diff(snap, snapOf(file("a/b.txt", "v1")), DiffOptions{}))
}

func TestDiffChangedContent(t *testing.T) {
	oldSnap := snapOf(file("a/b.txt", "v1"))
	newSnap := snapOf(file("a/b.txt", "v2"))

	assert.Equal(t, []string{"Upload a/b.txt"}, ops(Diff(oldSnap, newSnap, DiffOptions{})))
}

func TestDiffDeleteIsolated(t *testing.T) {
	oldSnap := snapOf(file("a/b.txt", "v1"), file("c.txt", "v1"))
	newSnap := snapOf(file("c.txt", "v1"))

	// Removing a/b.txt also removes folder a; the file delete is covered by
	// the recursive folder delete and pruned away.
	assert.Equal(t, []string{"Delete a"}, ops(Diff(oldSnap, newSnap, DiffOptions{})))
}

func TestDiffDeletePruning(t *testing.T) {
	oldSnap := snapOf(
		file("a/b/c.txt", "v1"),
		file("a/b/d.txt", "v1"),
		file("a/e.txt", "v1"),
	)
	newSnap := snapOf()

	assert.Equal(t, []string{"Delete a"}, ops(Diff(oldSnap, newSnap, DiffOptions{})))
}

func TestDiffMkDirOrdering(t *testing.T) {
	newSnap := snapOf(file("a/b/c/d.txt", "v1"), file("x/y.txt", "v1"))

	assert.Equal(t, []string{
		"MkDir a",
		"MkDir x",
		"MkDir a/b",
		"MkDir a/b/c",
		"Upload a/b/c/d.txt",
		"Upload x/y.txt",
	}, ops(Diff(nil, newSnap, DiffOptions{})))
}

func TestDiffKindFlipFileToDir(t *testing.T) {
	oldSnap := snapOf(file("a", "v1"))
	newSnap := snapOf(file("a/b.txt", "v1"))

	assert.Equal(t, []string{
		"Delete a",
		"MkDir a",
		"Upload a/b.txt",
	}, ops(Diff(oldSnap, newSnap, DiffOptions{})))
}

func TestDiffKindFlipDirToFile(t *testing.T) {
	oldSnap := snapOf(file("a/b.txt", "v1"))
	newSnap := snapOf(file("a", "v1"))

	intents := Diff(oldSnap, newSnap, DiffOptions{})
	assert.Equal(t, []string{
		"Delete a",
		"Upload a",
	}, ops(intents))

	// The replacement delete targets the old folder entry, so the engine
	// issues it recursively; a/b.txt needs no separate delete.
	require.NotNil(t, intents[0].Entry)
	assert.True(t, intents[0].Entry.IsDir())
}

func TestDiffSkip(t *testing.T) {
	newSnap := snapOf(file("keep.txt", "v1"), file("bad.txt", "v1"))

	intents := Diff(nil, newSnap, DiffOptions{
		Skip: func(p string) bool { return p == "bad.txt" },
	})
	assert.Equal(t, []string{"Upload keep.txt"}, ops(intents))
}

func TestDiffPruneEmptyDirs(t *testing.T) {
	newSnap := snapOf(dir("empty"), dir("full"), file("full/a.txt", "v1"))

	intents := Diff(nil, newSnap, DiffOptions{PruneEmptyDirs: true})
	assert.Equal(t, []string{
		"MkDir full",
		"Upload full/a.txt",
	}, ops(intents))

	// Without pruning the empty folder is mirrored too.
	intents = Diff(nil, newSnap, DiffOptions{})
	assert.Contains(t, ops(intents), "MkDir empty")
}

func TestDiffPruneEmptyDirsStable(t *testing.T) {
	snap := snapOf(dir("empty"), file("full/a.txt", "v1"))

	// An unchanged tree must diff to nothing, even when it contains a
	// persistently empty folder the pruning never mirrors.
	assert.Empty(t, Diff(snap, snap, DiffOptions{PruneEmptyDirs: true}))

	// Same across cycles: a committed snapshot that still carries the
	// empty-dir entry must not re-emit its delete.
	next := snapOf(dir("empty"), file("full/a.txt", "v1"))
	assert.Empty(t, Diff(snap, next, DiffOptions{PruneEmptyDirs: true}))
}

func TestDiffPruneEmptyDirsDeletesVacated(t *testing.T) {
	oldSnap := snapOf(file("a/b.txt", "v1"))
	newSnap := snapOf(dir("a"))

	// The last file under a is gone; with pruning on, a itself goes too.
	assert.Equal(t, []string{"Delete a"}, ops(Diff(oldSnap, newSnap, DiffOptions{PruneEmptyDirs: true})))
}

func TestDiffNilSnapshots(t *testing.T) {
	assert.Empty(t, Diff(nil, nil, DiffOptions{}))
	assert.Equal(t, []string{"Delete a.txt"}, ops(Diff(snapOf(file("a.txt", "v1")), nil, DiffOptions{})))
}
