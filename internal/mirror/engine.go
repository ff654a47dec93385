package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

var ErrCycleRunning = errors.New("mirror: cycle already running")

// Options tune a reconciliation engine. Zero values fall back to defaults.
type Options struct {
	Interval       time.Duration // pause between cycle completions
	OpTimeout      time.Duration // per remote call
	MaxAttempts    int           // per intent, transient errors only
	RetryWait      time.Duration // first backoff step
	RetryMaxWait   time.Duration // backoff ceiling
	Concurrency    int           // parallel remote ops within a stage
	Throttled      []MediaCategory
	PruneEmptyDirs bool
	VerifyNames    bool     // post-upload name round-trip check
	IgnorePatterns []string // extra ignore globs from config
}

func (o *Options) withDefaults() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 5 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	if o.RetryMaxWait <= 0 {
		o.RetryMaxWait = 30 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Throttled == nil {
		o.Throttled = DefaultThrottledCategories
	}
}

// Engine drives the reconciliation cycle: scan the local root, diff against
// the last committed snapshot, execute the resulting intents against the
// remote store, and commit the new snapshot only after full convergence.
type Engine struct {
	root      string
	store     remote.Store
	scanner   *Scanner
	snapshots *SnapshotStore
	skip      *SkipList
	opts      Options
	throttled map[MediaCategory]struct{}
	clock     clockwork.Clock

	// last is the previous cycle's committed snapshot. It is read while
	// diffing and replaced only at commit, always under the cycle lock.
	last    *Snapshot
	muCycle sync.Mutex
}

func NewEngine(root string, store remote.Store, snapshots *SnapshotStore, opts Options) (*Engine, error) {
	opts.withDefaults()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	ignore := NewIgnoreList(absRoot)
	ignore.Add(opts.IgnorePatterns...)
	if err := ignore.Load(); err != nil {
		return nil, fmt.Errorf("load ignore list: %w", err)
	}

	scanner, err := NewScanner(absRoot, ignore)
	if err != nil {
		return nil, err
	}

	last, err := snapshots.Load()
	if err != nil {
		return nil, err
	}
	if last != nil {
		slog.Info("resuming from committed snapshot", "entries", last.Len())
	}

	throttled := make(map[MediaCategory]struct{}, len(opts.Throttled))
	for _, cat := range opts.Throttled {
		throttled[cat] = struct{}{}
	}

	e := &Engine{
		root:      absRoot,
		store:     store,
		scanner:   scanner,
		snapshots: snapshots,
		skip:      NewSkipList(),
		opts:      opts,
		throttled: throttled,
		clock:     clockwork.NewRealClock(),
	}
	e.last = last
	return e, nil
}

// Run blocks, executing cycles on the configured cadence until ctx is
// cancelled. A failed cycle is logged and the next one scheduled normally;
// convergence is re-derived from the retained snapshot.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := e.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(e.opts.Interval):
		}
	}
}

// RunOnce executes a single reconciliation cycle. On any error the
// previous snapshot is retained, so the next cycle recomputes the same
// remaining work.
func (e *Engine) RunOnce(ctx context.Context) error {
	if !e.muCycle.TryLock() {
		return ErrCycleRunning
	}
	defer e.muCycle.Unlock()

	log := slog.With("cycle", uuid.NewString()[:8])
	tstart := time.Now()

	log.Debug("cycle", "phase", "scanning")
	snap, err := e.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	log.Debug("cycle", "phase", "diffing")
	intents := Diff(e.last, snap, DiffOptions{
		PruneEmptyDirs: e.opts.PruneEmptyDirs,
		Skip:           e.skip.Contains,
	})

	if len(intents) > 0 {
		log.Info("cycle", "phase", "executing", "intents", len(intents))
		if err := e.execute(ctx, log, intents); err != nil {
			return fmt.Errorf("execute: %w", err)
		}
	}

	log.Debug("cycle", "phase", "committing")
	if e.last == nil || !snap.Equal(e.last) {
		if err := e.snapshots.Replace(snap); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	e.last = snap

	if len(intents) > 0 || e.skip.Len() > 0 {
		log.Info("cycle converged",
			"took", time.Since(tstart),
			"entries", snap.Len(),
			"applied", len(intents),
			"skipped", e.skip.Len(),
		)
	}
	return nil
}

// execute applies intents stage by stage: stages run sequentially, intents
// within a stage in parallel. The stage split preserves the diff's
// ordering guarantees (parent folders before their contents).
func (e *Engine) execute(ctx context.Context, log *slog.Logger, intents []Intent) error {
	for _, stage := range stages(intents) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Concurrency)
		for _, in := range stage {
			g.Go(func() error {
				return e.apply(gctx, log, in)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// stages splits the ordered intent list into parallel-safe groups:
// consecutive intents of the same op, with MkDirs additionally split per
// depth so a parent folder always exists before its children are created.
func stages(intents []Intent) [][]Intent {
	var out [][]Intent
	var cur []Intent
	for _, in := range intents {
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			same := prev.Op == in.Op && (in.Op != OpMkDir || depth(prev.Path) == depth(in.Path))
			if !same {
				out = append(out, cur)
				cur = nil
			}
		}
		cur = append(cur, in)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// apply runs one intent with per-attempt timeout and exponential backoff.
// Logical-idempotent outcomes (delete of an absent path, mkdir of an
// existing folder) count as success.
func (e *Engine) apply(ctx context.Context, log *slog.Logger, in Intent) error {
	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
		err := e.applyOnce(opCtx, log, in)
		cancel()

		if err == nil {
			return nil
		}
		if in.Op == OpDelete && remote.IsNotFound(err) {
			log.Debug("delete: already absent", "path", in.Path)
			return nil
		}
		if in.Op == OpMkDir && remote.IsAlreadyExists(err) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if remote.IsFatal(err) {
			// Bad credentials or exhausted quota cannot be retried away.
			return fmt.Errorf("%s %s: %w", in.Op, in.Path, err)
		}
		if !remote.IsTransient(err) || attempt >= e.opts.MaxAttempts {
			return fmt.Errorf("%s %s (attempt %d): %w", in.Op, in.Path, attempt, err)
		}

		wait := e.backoffWait(attempt)
		log.Warn("retrying", "op", in.Op, "path", in.Path, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(wait):
		}
	}
}

func (e *Engine) backoffWait(attempt int) time.Duration {
	wait := e.opts.RetryWait << (attempt - 1)
	if wait <= 0 || wait > e.opts.RetryMaxWait {
		wait = e.opts.RetryMaxWait
	}
	return wait
}

func (e *Engine) applyOnce(ctx context.Context, log *slog.Logger, in Intent) error {
	switch in.Op {
	case OpMkDir:
		if err := e.store.EnsureFolder(ctx, in.Path); err != nil {
			return err
		}
		log.Info("mkdir", "path", in.Path)
		return nil
	case OpDelete:
		recursive := in.Entry != nil && in.Entry.IsDir()
		if err := e.store.Delete(ctx, in.Path, recursive); err != nil {
			return err
		}
		log.Info("deleted", "path", in.Path, "recursive", recursive)
		return nil
	case OpUpload:
		return e.upload(ctx, log, in)
	default:
		return fmt.Errorf("unknown intent op %d", in.Op)
	}
}

// upload pushes one file. Files in a throttled media category go up under
// a disguised neutral extension and are renamed into place afterwards; an
// interrupted disguise sequence is resumed rename-first so the bytes are
// not uploaded twice.
func (e *Engine) upload(ctx context.Context, log *slog.Logger, in Intent) error {
	localPath := filepath.Join(e.root, filepath.FromSlash(in.Path))

	target := in.Path
	mediaType := ContentTypeOf(in.Path)
	category := CategoryOf(in.Path)
	_, throttled := e.throttled[category]

	if throttled {
		target = DisguisePath(in.Path)
		mediaType = "application/octet-stream"

		if info, err := e.store.Stat(ctx, target); err == nil && !info.Dir && info.Size == in.Entry.Size {
			log.Debug("resuming interrupted upload", "path", in.Path)
			if err := e.store.Move(ctx, target, in.Path); err != nil {
				return err
			}
			return e.finishUpload(ctx, log, in, category)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer f.Close()

	if err := e.store.Put(ctx, target, f, in.Entry.Size, mediaType); err != nil {
		return err
	}
	if throttled {
		if err := e.store.Move(ctx, target, in.Path); err != nil {
			return err
		}
	}
	return e.finishUpload(ctx, log, in, category)
}

func (e *Engine) finishUpload(ctx context.Context, log *slog.Logger, in Intent, category MediaCategory) error {
	if err := e.verifyName(ctx, log, in.Path); err != nil {
		return err
	}
	log.Info("uploaded", "path", in.Path, "size", humanize.IBytes(uint64(in.Entry.Size)), "category", category)
	return nil
}

// verifyName detects paths the remote store silently renames. A mismatch
// would otherwise produce a delete/recreate loop every cycle, so such
// paths are skipped permanently with a single warning.
func (e *Engine) verifyName(ctx context.Context, log *slog.Logger, p string) error {
	if !e.opts.VerifyNames {
		return nil
	}

	info, err := e.store.Stat(ctx, p)
	if err != nil {
		if remote.IsNotFound(err) {
			e.skipPath(log, p, "uploaded name does not round-trip")
			return nil
		}
		// A flaky stat must not fail an upload that already succeeded.
		log.Debug("name verification unavailable", "path", p, "error", err)
		return nil
	}
	if info.Name != "" && info.Name != path.Base(p) {
		e.skipPath(log, p, fmt.Sprintf("remote stores it as %q", info.Name))
	}
	return nil
}

func (e *Engine) skipPath(log *slog.Logger, p, reason string) {
	if e.skip.Add(p) {
		log.Warn("permanently skipping path", "path", p, "reason", reason)
	}
}
