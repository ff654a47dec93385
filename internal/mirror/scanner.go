package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// fingerprintCacheSize bounds the scanner's hash cache. One entry per file;
// trees larger than this just re-hash the coldest files.
const fingerprintCacheSize = 65536

type cachedSum struct {
	size    int64
	modTime time.Time
	sum     string
}

// Scanner walks the watched root and produces snapshots. Hashing is the
// expensive part, so results are cached keyed on (size, mtime): an
// unchanged file is never re-read.
type Scanner struct {
	root   string
	ignore *IgnoreList
	cache  *lru.Cache[string, cachedSum]
}

func NewScanner(root string, ignore *IgnoreList) (*Scanner, error) {
	cache, err := lru.New[string, cachedSum](fingerprintCacheSize)
	if err != nil {
		return nil, err
	}
	return &Scanner{root: root, ignore: ignore, cache: cache}, nil
}

// Scan builds a fresh snapshot of the root. A missing or unreadable root is
// an error; unreadable entries inside the tree are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan root %q: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %q: not a directory", s.root)
	}

	snap := NewSnapshot()

	walkFn := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root {
				return err
			}
			slog.Warn("scan: skipping unreadable entry", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		relPath := NormalizePath(filepath.ToSlash(rel))

		// Symlinks are never followed; a cycle cannot form.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if s.ignore != nil && s.ignore.Match(relPath) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			snap.Add(&Entry{Path: relPath, Kind: KindDir})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			slog.Warn("scan: skipping file", "path", p, "error", err)
			return nil
		}

		sum, err := s.fingerprint(p, fi)
		if err != nil {
			slog.Warn("scan: skipping unreadable file", "path", p, "error", err)
			return nil
		}

		snap.Add(&Entry{
			Path:        relPath,
			Kind:        KindFile,
			Size:        fi.Size(),
			Fingerprint: sum,
			ModTime:     fi.ModTime(),
		})
		return nil
	}

	if err := filepath.WalkDir(s.root, walkFn); err != nil {
		return nil, fmt.Errorf("scan root %q: %w", s.root, err)
	}
	return snap, nil
}

// fingerprint returns the MD5 content hash of the file, reusing the cached
// sum when size and mtime both match.
func (s *Scanner) fingerprint(p string, fi fs.FileInfo) (string, error) {
	if cached, ok := s.cache.Get(p); ok && cached.size == fi.Size() && cached.modTime.Equal(fi.ModTime()) {
		return cached.sum, nil
	}

	sum, err := utils.FileHash(p)
	if err != nil {
		return "", err
	}

	s.cache.Add(p, cachedSum{size: fi.Size(), modTime: fi.ModTime(), sum: sum})
	return sum, nil
}
