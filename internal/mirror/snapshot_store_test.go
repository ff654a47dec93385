package mirror

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorbox/mirrorbox/internal/db"
)

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	sdb, err := db.NewSqliteDb(db.WithPath(filepath.Join(t.TempDir(), "state.db")))
	require.NoError(t, err)
	t.Cleanup(func() { sdb.Close() })

	store, err := NewSnapshotStore(sdb)
	require.NoError(t, err)
	return store
}

func TestSnapshotStoreLoadEmpty(t *testing.T) {
	store := newTestSnapshotStore(t)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap, "no committed snapshot yet")
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := newTestSnapshotStore(t)

	snap := NewSnapshot()
	snap.Add(&Entry{Path: "a/b.txt", Kind: KindFile, Size: 5, Fingerprint: "sum1", ModTime: time.Now()})
	snap.Add(&Entry{Path: "c.bin", Kind: KindFile, Size: 9, Fingerprint: "sum2", ModTime: time.Now()})
	require.NoError(t, store.Replace(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, snap.Equal(loaded))

	e, ok := loaded.Get("a/b.txt")
	require.True(t, ok)
	assert.Equal(t, "sum1", e.Fingerprint)
	assert.False(t, e.ModTime.IsZero())
}

func TestSnapshotStoreReplaceOverwrites(t *testing.T) {
	store := newTestSnapshotStore(t)

	first := NewSnapshot()
	first.Add(&Entry{Path: "old.txt", Kind: KindFile, Fingerprint: "v1"})
	require.NoError(t, store.Replace(first))

	second := NewSnapshot()
	second.Add(&Entry{Path: "new.txt", Kind: KindFile, Fingerprint: "v2"})
	require.NoError(t, store.Replace(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, second.Equal(loaded))

	_, ok := loaded.Get("old.txt")
	assert.False(t, ok)
}
