// Package daemon wires a validated config into a running mirror engine:
// remote store, state database, single-instance lock, reconciliation loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"

	"github.com/mirrorbox/mirrorbox/internal/config"
	"github.com/mirrorbox/mirrorbox/internal/db"
	"github.com/mirrorbox/mirrorbox/internal/mirror"
	"github.com/mirrorbox/mirrorbox/internal/remote"
	"github.com/mirrorbox/mirrorbox/internal/remote/s3"
	"github.com/mirrorbox/mirrorbox/internal/remote/yadisk"
	"github.com/mirrorbox/mirrorbox/internal/utils"
)

const (
	stateDBName  = "state.db"
	lockFileName = "mirrorbox.lock"
)

var ErrAlreadyRunning = errors.New("daemon: another instance holds the state lock")

// Daemon owns the engine plus everything it runs on. Create with New,
// drive with Start or RunOnce, and Close when done.
type Daemon struct {
	cfg    *config.Config
	engine *mirror.Engine
	db     *sqlx.DB
	lock   *flock.Flock
}

// New builds a daemon from cfg. It grabs the state-dir lock, opens the
// snapshot database, and verifies the remote end by creating the mirror
// root folder, so credential problems surface here and not mid-cycle.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(cfg.StateDir); err != nil {
		return nil, fmt.Errorf("daemon: state dir: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.StateDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("daemon: state lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	d := &Daemon{cfg: cfg, lock: lock}
	if err := d.setup(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) setup(ctx context.Context) error {
	store, err := newStore(ctx, d.cfg)
	if err != nil {
		return err
	}

	// One round-trip up front: creates the remote root on first run and
	// rejects a bad token before the loop starts.
	if err := store.EnsureFolder(ctx, ""); err != nil && !remote.IsAlreadyExists(err) {
		return fmt.Errorf("daemon: remote root: %w", err)
	}

	sdb, err := db.NewSqliteDb(db.WithPath(filepath.Join(d.cfg.StateDir, stateDBName)))
	if err != nil {
		return fmt.Errorf("daemon: state db: %w", err)
	}
	d.db = sdb

	snapshots, err := mirror.NewSnapshotStore(sdb)
	if err != nil {
		return err
	}

	engine, err := mirror.NewEngine(d.cfg.Root, store, snapshots, engineOptions(d.cfg))
	if err != nil {
		return err
	}
	d.engine = engine

	slog.Info("daemon ready",
		"root", d.cfg.Root,
		"backend", d.cfg.Backend,
		"remote_root", d.cfg.RemoteRoot,
		"interval", d.cfg.Interval,
	)
	return nil
}

// Start runs reconciliation cycles until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	return d.engine.Run(ctx)
}

// RunOnce executes a single cycle and reports whether it converged.
func (d *Daemon) RunOnce(ctx context.Context) error {
	return d.engine.RunOnce(ctx)
}

func (d *Daemon) Close() error {
	var errs []error
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	if d.lock != nil {
		errs = append(errs, d.lock.Unlock())
	}
	return errors.Join(errs...)
}

func newStore(ctx context.Context, cfg *config.Config) (remote.Store, error) {
	switch cfg.Backend {
	case config.BackendYandexDisk:
		return yadisk.New(&yadisk.Config{
			Token: cfg.Token,
			Root:  cfg.RemoteRoot,
		})
	case config.BackendS3:
		return s3.NewFromConfig(ctx, &s3.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			StorageClass:    cfg.S3.StorageClass,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("daemon: unknown backend %q", cfg.Backend)
	}
}

func engineOptions(cfg *config.Config) mirror.Options {
	return mirror.Options{
		Interval:       cfg.Interval,
		OpTimeout:      cfg.OpTimeout,
		MaxAttempts:    cfg.RetryMaxAttempts,
		RetryWait:      cfg.RetryWait,
		RetryMaxWait:   cfg.RetryMaxWait,
		Concurrency:    cfg.Concurrency,
		Throttled:      throttledCategories(cfg.ThrottledTypes),
		PruneEmptyDirs: cfg.PruneEmptyDirs,
		VerifyNames:    cfg.VerifyNames,
		IgnorePatterns: cfg.IgnorePatterns,
	}
}

// throttledCategories maps config strings onto media categories, dropping
// unknown names with a warning. nil means "use the engine defaults".
func throttledCategories(names []string) []mirror.MediaCategory {
	if names == nil {
		return nil
	}
	known := map[mirror.MediaCategory]bool{
		mirror.MediaArchive:  true,
		mirror.MediaVideo:    true,
		mirror.MediaAudio:    true,
		mirror.MediaImage:    true,
		mirror.MediaDocument: true,
		mirror.MediaBinary:   true,
		mirror.MediaOther:    true,
	}
	out := make([]mirror.MediaCategory, 0, len(names))
	for _, name := range names {
		cat := mirror.MediaCategory(name)
		if !known[cat] {
			slog.Warn("ignoring unknown throttled media type", "type", name)
			continue
		}
		out = append(out, cat)
	}
	return out
}
