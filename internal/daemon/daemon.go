// Package daemon keeps a device in sync in the background: one cycle on
// start, then one every interval or on demand, while the inbox captures
// dropped files.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/syncer"
)

// Syncer runs one sync cycle.
type Syncer interface {
	Sync(ctx context.Context) (syncer.Result, error)
}

// Watcher captures files until ctx is done.
type Watcher interface {
	Run(ctx context.Context) error
}

// Daemon schedules sync cycles.
type Daemon struct {
	sync     Syncer
	inbox    Watcher
	interval time.Duration
	log      *zap.Logger
	nudge    chan struct{}
}

// New builds a daemon. inbox may be nil.
func New(s Syncer, inbox Watcher, interval time.Duration, log *zap.Logger) *Daemon {
	if log == nil {
		log = zap.NewNop()
	}
	return &Daemon{sync: s, inbox: inbox, interval: interval, log: log, nudge: make(chan struct{}, 1)}
}

// Nudge requests a cycle as soon as the current one (if any) finishes.
// Requests made while one is already queued collapse into it.
func (d *Daemon) Nudge() {
	select {
	case d.nudge <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled or the inbox watcher fails.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if d.inbox != nil {
		g.Go(func() error { return d.inbox.Run(ctx) })
	}
	g.Go(func() error {
		d.runOnce(ctx)
		tick := time.NewTicker(d.interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
			case <-d.nudge:
			}
			d.runOnce(ctx)
		}
	})
	return g.Wait()
}

func (d *Daemon) runOnce(ctx context.Context) {
	res, err := d.sync.Sync(ctx)
	switch {
	case err == nil:
		d.log.Debug("daemon sync done", zap.Int("adopted", res.Adopted), zap.Int("uploaded", res.Uploaded))
	case errors.Is(err, errs.ErrSyncInProgress):
		d.log.Debug("sync skipped, another process is syncing")
	case errors.Is(err, context.Canceled):
	default:
		d.log.Warn("daemon sync failed", zap.Error(err))
	}
}
