package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/and161185/clipsync/internal/blobstore"
	"github.com/and161185/clipsync/internal/config"
	"github.com/and161185/clipsync/internal/crypto/clientcrypto"
	"github.com/and161185/clipsync/internal/kv"
	"github.com/and161185/clipsync/internal/localstore"
	"github.com/and161185/clipsync/internal/logging"
	"github.com/and161185/clipsync/internal/remote"
	"github.com/and161185/clipsync/internal/syncer"
	"github.com/and161185/clipsync/internal/transport"
)

// app holds the services one command invocation needs. Everything is built
// here once and injected; nothing is global.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	kv      kv.Storage
	blobs   *blobstore.Store
	store   *localstore.Store
	loadErr error
	closers []func() error
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := kv.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	blobs, err := blobstore.New(cfg.BlobDir())
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, kv: st, blobs: blobs, closers: []func() error{st.Close}}
	a.store = localstore.New(st, log,
		localstore.WithBlobs(blobs),
		localstore.WithLocker(flock.New(cfg.StoreLockPath())))
	// A failed load is not fatal: the bytes are backed up, reads still work
	// and doctor can acknowledge the failure.
	a.loadErr = a.store.Load(ctx)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// remoteClient dials the replica and wraps it with optional sealing.
func (a *app) remoteClient() (*remote.Client, *transport.Store, error) {
	rs := a.cfg.Remote
	if rs.Addr == "" {
		return nil, nil, errors.New("remote.addr is not configured (see clipsync config init)")
	}
	ts, err := transport.Dial(transport.Options{Addr: rs.Addr, Token: rs.Token, Insecure: rs.Insecure, CACert: rs.CACert})
	if err != nil {
		return nil, nil, fmt.Errorf("dial replica: %w", err)
	}
	a.closers = append(a.closers, ts.Close)

	opts := []remote.Option{remote.WithPageSize(rs.PageSize), remote.WithBatchSize(rs.BatchSize)}
	if pass := a.cfg.Sync.Passphrase; pass != "" {
		opts = append(opts, remote.WithSealer(clientcrypto.NewSealer([]byte(pass), transport.SealingSalt(rs.Token))))
	}
	return remote.NewClient(ts, a.log, opts...), ts, nil
}

func (a *app) coordinator() (*syncer.Coordinator, error) {
	rc, _, err := a.remoteClient()
	if err != nil {
		return nil, err
	}
	return syncer.New(a.store, rc, a.kv, syncer.Config{
		Timeout:          a.cfg.Sync.Timeout,
		InitialPageLimit: a.cfg.Sync.InitialPageLimit,
		Retention:        a.cfg.Retention,
		LockPath:         a.cfg.LockPath(),
	}, a.log), nil
}
