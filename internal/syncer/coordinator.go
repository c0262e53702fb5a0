// Package syncer runs the fetch, merge, upload and delete cycle between the
// local store and the remote replica.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/kv"
	"github.com/and161185/clipsync/internal/localstore"
	"github.com/and161185/clipsync/internal/model"
	"github.com/and161185/clipsync/internal/remote"
)

// KeyInitialDone marks that the first (possibly page-limited) sync finished.
const KeyInitialDone = "sync.initial_done"

const defaultTimeout = 60 * time.Second

// LocalStore is the part of the local store the coordinator drives.
type LocalStore interface {
	LoadError() error
	Transact(ctx context.Context, fn func(tx *localstore.Tx) error) error
	PendingDeletes() []model.PendingDelete
	ClearPendingDeletes(ctx context.Context, done []model.PendingDelete) error
}

// Remote is the replica client.
type Remote interface {
	FetchItems(ctx context.Context, pageLimit int) ([]model.ClipboardItem, remote.FetchStats, error)
	FetchTagColors(ctx context.Context) ([]model.TagColor, remote.FetchStats, error)
	UpsertItems(ctx context.Context, items []model.ClipboardItem) error
	UpsertTagColors(ctx context.Context, colors []model.TagColor) error
	Delete(ctx context.Context, kind model.Kind, id string) error
}

// State is the phase of the running cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StateUploading
	StateDeleting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateUploading:
		return "uploading"
	case StateDeleting:
		return "deleting"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Config tunes a Coordinator.
type Config struct {
	Timeout          time.Duration // bounds one cycle; zero means one minute
	InitialPageLimit int           // item cap for the very first cycle; zero fetches all
	Retention        localstore.Retention
	LockPath         string // advisory lock file shared by all processes; empty disables it
}

// Result summarizes one cycle.
type Result struct {
	Fetched      int
	Skipped      int
	Truncated    bool
	Adopted      int
	Uploaded     int
	Zombies      int
	Evicted      int
	TagsAdopted  int
	TagsUploaded int
	TagsSkipped  bool // tag-color fetch failed; tags were left alone this cycle
	Deleted      int
	DeleteFailed int
}

// Coordinator runs sync cycles. Concurrent Sync calls in one process share a
// single cycle; another process holding the lock makes Sync fail fast.
type Coordinator struct {
	store  LocalStore
	remote Remote
	flags  kv.Storage
	cfg    Config
	log    *zap.Logger
	lock   *flock.Flock
	group  singleflight.Group
	state  atomic.Int32
}

// New builds a coordinator. flags persists the first-sync marker.
func New(store LocalStore, rem Remote, flags kv.Storage, cfg Config, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Coordinator{store: store, remote: rem, flags: flags, cfg: cfg, log: log}
	if cfg.LockPath != "" {
		c.lock = flock.New(cfg.LockPath)
	}
	return c
}

// State reports the phase of the cycle in progress.
func (c *Coordinator) State() State { return State(c.state.Load()) }

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
	c.log.Debug("sync state", zap.Stringer("state", s))
}

// Sync runs one cycle, or joins the one already running in this process.
func (c *Coordinator) Sync(ctx context.Context) (Result, error) {
	v, err, shared := c.group.Do("sync", func() (any, error) {
		return c.runLocked(ctx)
	})
	if shared {
		c.log.Debug("joined running sync")
	}
	res, _ := v.(Result)
	return res, err
}

func (c *Coordinator) runLocked(ctx context.Context) (Result, error) {
	if c.lock != nil {
		ok, err := c.lock.TryLock()
		if err != nil {
			return Result{}, fmt.Errorf("sync lock: %w", err)
		}
		if !ok {
			return Result{}, errs.ErrSyncInProgress
		}
		defer func() {
			if err := c.lock.Unlock(); err != nil {
				c.log.Warn("sync unlock", zap.Error(err))
			}
		}()
	}
	if err := c.store.LoadError(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrLoadFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := c.cycle(ctx)
	c.setState(StateIdle)

	fields := []zap.Field{
		zap.Duration("dur", time.Since(start)),
		zap.Int("fetched", res.Fetched),
		zap.Int("skipped", res.Skipped),
		zap.Int("adopted", res.Adopted),
		zap.Int("uploaded", res.Uploaded),
		zap.Int("evicted", res.Evicted),
		zap.Int("deleted", res.Deleted),
	}
	if err != nil {
		c.log.Warn("sync cycle", append(fields, zap.Error(err))...)
	} else {
		c.log.Info("sync cycle", fields...)
	}
	return res, err
}

func (c *Coordinator) cycle(ctx context.Context) (Result, error) {
	var res Result

	c.setState(StateFetching)
	pageLimit, err := c.pageLimit(ctx)
	if err != nil {
		c.setState(StateFailed)
		return res, err
	}
	remoteItems, stats, err := c.remote.FetchItems(ctx, pageLimit)
	if err != nil {
		c.setState(StateFailed)
		return res, err
	}
	res.Fetched, res.Skipped, res.Truncated = stats.Fetched, stats.Skipped, stats.Truncated

	remoteColors, _, err := c.remote.FetchTagColors(ctx)
	if err != nil {
		c.log.Warn("tag colors not synced this cycle", zap.Error(err))
		res.TagsSkipped = true
	}

	c.setState(StateMerging)
	var (
		itemPlan ItemPlan
		tagPlan  TagPlan
	)
	err = c.store.Transact(ctx, func(tx *localstore.Tx) error {
		itemPlan = MergeItems(tx.Items(), remoteItems, func(id string) bool {
			return tx.IsPendingDelete(model.KindItem, id)
		})
		for _, it := range itemPlan.Adopt {
			tx.PutItem(it)
		}
		evicted := tx.ApplyRetention(c.cfg.Retention)
		res.Evicted = len(evicted)
		itemPlan.Upload = withoutEvicted(itemPlan.Upload, evicted)

		if !res.TagsSkipped {
			tagPlan = MergeTagColors(tx.TagColors(), remoteColors, func(tag string) bool {
				return tx.IsPendingDelete(model.KindTagColor, tag)
			})
			for _, tc := range tagPlan.Adopt {
				tx.PutTagColor(tc)
			}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("persist merge: %w", err)
	}
	res.Adopted, res.Zombies, res.TagsAdopted = len(itemPlan.Adopt), itemPlan.Zombies, len(tagPlan.Adopt)

	c.setState(StateUploading)
	var writeErr error
	if len(itemPlan.Upload) > 0 {
		if err := c.remote.UpsertItems(ctx, itemPlan.Upload); err != nil {
			writeErr = err
		} else {
			res.Uploaded = len(itemPlan.Upload)
		}
	}
	if len(tagPlan.Upload) > 0 {
		if err := c.remote.UpsertTagColors(ctx, tagPlan.Upload); err != nil {
			writeErr = errors.Join(writeErr, err)
		} else {
			res.TagsUploaded = len(tagPlan.Upload)
		}
	}

	c.setState(StateDeleting)
	res.Deleted, res.DeleteFailed = c.flushDeletes(ctx)

	if pageLimit > 0 {
		c.markInitialDone(ctx)
	}
	return res, writeErr
}

// flushDeletes issues every queued remote delete. Failures stay queued for the
// next cycle and are never escalated.
func (c *Coordinator) flushDeletes(ctx context.Context) (deleted, failed int) {
	pending := c.store.PendingDeletes()
	if len(pending) == 0 {
		return 0, 0
	}
	done := make([]model.PendingDelete, 0, len(pending))
	for _, p := range pending {
		if err := c.remote.Delete(ctx, p.Kind, p.ID); err != nil {
			failed++
			c.log.Warn("remote delete failed", zap.String("kind", string(p.Kind)), zap.String("id", p.ID), zap.Error(err))
			continue
		}
		done = append(done, p)
	}
	if err := c.store.ClearPendingDeletes(ctx, done); err != nil {
		c.log.Warn("clear pending deletes", zap.Error(err))
	}
	return len(done), failed
}

func (c *Coordinator) pageLimit(ctx context.Context) (int, error) {
	if c.cfg.InitialPageLimit <= 0 || c.flags == nil {
		return 0, nil
	}
	_, done, err := c.flags.Get(ctx, KeyInitialDone)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", KeyInitialDone, err)
	}
	if done {
		return 0, nil
	}
	return c.cfg.InitialPageLimit, nil
}

func (c *Coordinator) markInitialDone(ctx context.Context) {
	if c.cfg.InitialPageLimit <= 0 || c.flags == nil {
		return
	}
	if err := c.flags.Set(ctx, KeyInitialDone, []byte("1")); err != nil {
		c.log.Warn("mark initial sync", zap.Error(err))
	}
}

func withoutEvicted(upload, evicted []model.ClipboardItem) []model.ClipboardItem {
	if len(evicted) == 0 || len(upload) == 0 {
		return upload
	}
	gone := make(map[string]struct{}, len(evicted))
	for _, it := range evicted {
		gone[it.ID] = struct{}{}
	}
	out := upload[:0:0]
	for _, it := range upload {
		if _, ok := gone[it.ID]; !ok {
			out = append(out, it)
		}
	}
	return out
}
