// Package localstore owns the canonical local collection of clipboard items and
// tag colors: persistence, schema migration on load, retention eviction and the
// mutation operations used by the CLI, the inbox and the sync coordinator.
//
// All mutations are serialized by one mutex; no two interleave. Processes that
// share the storage are serialized by an optional Locker, and every mutation
// re-reads the collection before applying, so concurrent processes never
// overwrite each other's changes with a stale view.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/clipsync/internal/blobstore"
	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/kv"
	"github.com/and161185/clipsync/internal/model"
	"github.com/and161185/clipsync/internal/schema"
)

// Persisted keys.
const (
	KeySchemaVersion   = "schema_version"
	KeyItems           = "items"
	KeyItemsBackup     = "items.corrupted"
	KeyTagColors       = "tag_colors"
	KeyTagColorsBackup = "tag_colors.corrupted"
	KeyPendingDeletes  = "sync.pending_deletes"
)

const lockRetry = 20 * time.Millisecond

// Locker serializes read-modify-write cycles across processes sharing one
// storage. *flock.Flock satisfies it.
type Locker interface {
	TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error)
	Unlock() error
}

// Store is the single owner of the local collection.
type Store struct {
	mu      sync.Mutex
	kv      kv.Storage
	locker  Locker
	log     *zap.Logger
	now     func() time.Time
	blobs   *blobstore.Store
	items   map[string]model.ClipboardItem
	colors  map[string]model.TagColor
	pending []model.PendingDelete
	loadErr error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp mutations.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLocker makes every mutation hold l while it re-reads and persists.
func WithLocker(l Locker) Option { return func(s *Store) { s.locker = l } }

// WithBlobs lets purge and eviction remove orphaned binary payloads.
func WithBlobs(b *blobstore.Store) Option { return func(s *Store) { s.blobs = b } }

// New constructs an empty store over st. Call Load before use.
func New(st kv.Storage, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		kv:     st,
		log:    log,
		now:    time.Now,
		items:  make(map[string]model.ClipboardItem),
		colors: make(map[string]model.TagColor),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads the persisted collection, migrating stale schema versions first.
//
// Undecodable data is copied to a backup key and the store starts empty. The
// returned error (a *errs.DecodeError or *errs.MigrationError) is not fatal; it
// stays available through LoadError and blocks every write until acknowledged.
// Only storage read failures leave the store unusable.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.loadLocked(ctx)
}

// loadLocked replaces the in-memory collection with the persisted one. On a
// storage read failure the previous state is kept.
func (s *Store) loadLocked(ctx context.Context) error {
	prevItems, prevColors, prevPending, prevErr := s.items, s.colors, s.pending, s.loadErr
	s.items = make(map[string]model.ClipboardItem)
	s.colors = make(map[string]model.TagColor)
	s.pending = nil
	s.loadErr = nil

	itemErr, migrated, err := s.loadItems(ctx)
	var colorErr error
	if err == nil {
		colorErr, err = s.loadColors(ctx)
	}
	if err == nil {
		err = s.loadPending(ctx)
	}
	if err != nil {
		s.items, s.colors, s.pending, s.loadErr = prevItems, prevColors, prevPending, prevErr
		return err
	}

	s.loadErr = errors.Join(itemErr, colorErr)
	if s.loadErr != nil {
		return s.loadErr
	}
	if migrated {
		if err := s.persistItems(ctx); err != nil {
			return fmt.Errorf("persist migrated collection: %w", err)
		}
	}
	return nil
}

// acquire takes the cross-process lock, if any. The returned func releases it.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	ok, err := s.locker.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	if !ok {
		return nil, errors.New("lock store: not acquired")
	}
	return func() {
		if err := s.locker.Unlock(); err != nil {
			s.log.Warn("store unlock", zap.Error(err))
		}
	}, nil
}

// commitLocked is the write path of every mutation. It refuses while a load
// failure is flagged, re-reads the collection under the cross-process lock,
// runs fn and persists what fn marked dirty. On any failure the in-memory
// state is rolled back.
func (s *Store) commitLocked(ctx context.Context, fn func(tx *Tx) error) error {
	if err := s.writable(); err != nil {
		return err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.loadLocked(ctx); err != nil {
		if s.loadErr != nil {
			return s.writable()
		}
		return fmt.Errorf("reload collection: %w", err)
	}

	items, colors, pending := maps.Clone(s.items), maps.Clone(s.colors), slices.Clone(s.pending)
	tx := &Tx{s: s}
	err = fn(tx)
	if err == nil {
		err = tx.persist(ctx)
	}
	if err != nil {
		s.items, s.colors, s.pending = items, colors, pending
		return err
	}
	for _, name := range tx.orphans {
		s.releaseBlob(name)
	}
	return nil
}

// loadItems returns a recoverable decode/migration error separately from
// storage failures, and whether a migration happened.
func (s *Store) loadItems(ctx context.Context) (recoverable error, migrated bool, err error) {
	raw, ok, err := s.kv.Get(ctx, KeyItems)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", KeyItems, err)
	}
	if !ok {
		return nil, false, nil
	}

	version, err := s.storedVersion(ctx)
	if err != nil {
		return nil, false, err
	}

	var items []model.ClipboardItem
	switch {
	case version < schema.CurrentVersion:
		items, recoverable = schema.Migrate(raw, version)
		migrated = recoverable == nil
		if migrated {
			s.log.Info("migrated local collection",
				zap.Int("from", version), zap.Int("to", schema.CurrentVersion), zap.Int("items", len(items)))
		}
	case version == schema.CurrentVersion:
		if items, err = schema.Decode(raw); err != nil {
			recoverable = &errs.DecodeError{Key: KeyItems, Err: err}
		}
	default:
		recoverable = &errs.DecodeError{Key: KeyItems,
			Err: fmt.Errorf("schema version %d is newer than supported %d", version, schema.CurrentVersion)}
	}

	if recoverable != nil {
		s.backup(ctx, KeyItemsBackup, raw, recoverable)
		return recoverable, false, nil
	}

	for _, it := range items {
		if cur, dup := s.items[it.ID]; dup && !it.Timestamp.After(cur.Timestamp) {
			continue
		}
		s.items[it.ID] = it
	}
	return nil, migrated, nil
}

// storedVersion returns the persisted schema version. A collection written
// before versions were recorded is treated as v1.
func (s *Store) storedVersion(ctx context.Context) (int, error) {
	raw, ok, err := s.kv.Get(ctx, KeySchemaVersion)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", KeySchemaVersion, err)
	}
	if !ok {
		return 1, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || v < 1 {
		// unreadable version: let the migrator reject it so the collection is backed up
		return 0, nil
	}
	return v, nil
}

func (s *Store) loadColors(ctx context.Context) (error, error) {
	raw, ok, err := s.kv.Get(ctx, KeyTagColors)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyTagColors, err)
	}
	if !ok {
		return nil, nil
	}
	var colors []model.TagColor
	if err := json.Unmarshal(raw, &colors); err != nil {
		derr := &errs.DecodeError{Key: KeyTagColors, Err: err}
		s.backup(ctx, KeyTagColorsBackup, raw, derr)
		return derr, nil
	}
	for _, c := range colors {
		s.colors[c.Tag] = c
	}
	return nil, nil
}

func (s *Store) loadPending(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, KeyPendingDeletes)
	if err != nil {
		return fmt.Errorf("read %s: %w", KeyPendingDeletes, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, &s.pending); err != nil {
		// only costs zombie records on the replica
		s.log.Warn("dropping unreadable pending delete queue", zap.Error(err))
		s.pending = nil
	}
	return nil
}

func (s *Store) backup(ctx context.Context, key string, raw []byte, cause error) {
	s.log.Error("local data unreadable, starting empty",
		zap.String("backup_key", key), zap.Int("bytes", len(raw)), zap.Error(cause))
	if err := s.kv.Set(ctx, key, raw); err != nil {
		// Save stays refused, so the original bytes are not overwritten either.
		s.log.Error("write corrupted backup", zap.String("key", key), zap.Error(err))
	}
}

// LoadError returns the flagged load failure, if any.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// AcknowledgeLoadError clears the flag and writes the (empty or partially
// recovered) collection over the unreadable data. The backup key is kept.
func (s *Store) AcknowledgeLoadError(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr == nil {
		return nil
	}
	s.log.Warn("load error acknowledged", zap.Error(s.loadErr))
	s.loadErr = nil
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.persistAllLocked(ctx)
}

// Save persists the whole in-memory collection, tag colors and the pending
// delete queue as they are, without re-reading.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.persistAllLocked(ctx)
}

func (s *Store) persistAllLocked(ctx context.Context) error {
	if err := s.persistItems(ctx); err != nil {
		return err
	}
	if err := s.persistColors(ctx); err != nil {
		return err
	}
	return s.persistPending(ctx)
}

func (s *Store) writable() error {
	if s.loadErr != nil {
		return fmt.Errorf("%w: %v", errs.ErrLoadFailed, s.loadErr)
	}
	return nil
}

// persistItems writes the version before the items: a crash in between leaves
// old-format bytes under the new version, which decode with defaults.
func (s *Store) persistItems(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}
	raw, err := schema.Encode(s.snapshotLocked())
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	if err := s.kv.Set(ctx, KeySchemaVersion, []byte(strconv.Itoa(schema.CurrentVersion))); err != nil {
		return fmt.Errorf("write %s: %w", KeySchemaVersion, err)
	}
	if err := s.kv.Set(ctx, KeyItems, raw); err != nil {
		return fmt.Errorf("write %s: %w", KeyItems, err)
	}
	return nil
}

func (s *Store) persistColors(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}
	raw, err := json.Marshal(s.tagColorsLocked())
	if err != nil {
		return fmt.Errorf("encode tag colors: %w", err)
	}
	if err := s.kv.Set(ctx, KeyTagColors, raw); err != nil {
		return fmt.Errorf("write %s: %w", KeyTagColors, err)
	}
	return nil
}

func (s *Store) persistPending(ctx context.Context) error {
	if len(s.pending) == 0 {
		return s.kv.Remove(ctx, KeyPendingDeletes)
	}
	raw, err := json.Marshal(s.pending)
	if err != nil {
		return fmt.Errorf("encode pending deletes: %w", err)
	}
	if err := s.kv.Set(ctx, KeyPendingDeletes, raw); err != nil {
		return fmt.Errorf("write %s: %w", KeyPendingDeletes, err)
	}
	return nil
}

// snapshotLocked returns sorted copies of all items.
func (s *Store) snapshotLocked() []model.ClipboardItem {
	out := make([]model.ClipboardItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	model.SortItems(out)
	return out
}

func (s *Store) tagColorsLocked() []model.TagColor {
	out := make([]model.TagColor, 0, len(s.colors))
	for _, c := range s.colors {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.TagColor) int { return strings.Compare(a.Tag, b.Tag) })
	return out
}

func (s *Store) stamp() time.Time { return model.Stamp(s.now()) }
