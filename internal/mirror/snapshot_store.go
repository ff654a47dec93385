package mirror

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshot_entries (
    path        TEXT PRIMARY KEY,
    kind        INTEGER NOT NULL,
    size        INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,
    mod_time    TEXT NOT NULL -- RFC3339Nano
);
`

// SnapshotStore persists the last committed snapshot in SQLite so a
// restarted process diffs against where it left off instead of
// re-uploading the world.
type SnapshotStore struct {
	db *sqlx.DB
	mu sync.Mutex
}

type snapshotRow struct {
	Path        string `db:"path"`
	Kind        uint8  `db:"kind"`
	Size        int64  `db:"size"`
	Fingerprint string `db:"fingerprint"`
	ModTime     string `db:"mod_time"`
}

func NewSnapshotStore(db *sqlx.DB) (*SnapshotStore, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, fmt.Errorf("init snapshot schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Load rebuilds the last committed snapshot, or returns nil when none was
// ever committed.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []snapshotRow
	if err := s.db.Select(&rows, "SELECT path, kind, size, fingerprint, mod_time FROM snapshot_entries"); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	snap := NewSnapshot()
	for _, row := range rows {
		e := &Entry{
			Path:        row.Path,
			Kind:        Kind(row.Kind),
			Size:        row.Size,
			Fingerprint: row.Fingerprint,
		}
		if t, err := time.Parse(time.RFC3339Nano, row.ModTime); err == nil {
			e.ModTime = t
		}
		snap.Add(e)
	}
	return snap, nil
}

// Replace swaps the stored snapshot for snap in one transaction; a crash
// mid-commit leaves the previous snapshot intact.
func (s *SnapshotStore) Replace(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM snapshot_entries"); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	stmt, err := tx.PrepareNamed(
		"INSERT INTO snapshot_entries (path, kind, size, fingerprint, mod_time) " +
			"VALUES (:path, :kind, :size, :fingerprint, :mod_time)")
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Paths() {
		e, _ := snap.Get(p)
		row := snapshotRow{
			Path:        e.Path,
			Kind:        uint8(e.Kind),
			Size:        e.Size,
			Fingerprint: e.Fingerprint,
			ModTime:     e.ModTime.Format(time.RFC3339Nano),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("replace snapshot %q: %w", e.Path, err)
		}
	}

	return tx.Commit()
}
