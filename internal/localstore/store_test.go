package localstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/clipsync/internal/blobstore"
	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/kv"
	"github.com/and161185/clipsync/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newStore(t *testing.T, st kv.Storage) (*Store, *fakeClock) {
	t.Helper()
	if st == nil {
		st = kv.NewMemory()
	}
	clk := &fakeClock{now: t0}
	s := New(st, zaptest.NewLogger(t), WithClock(clk.Now))
	require.NoError(t, s.Load(context.Background()))
	return s, clk
}

// failingKV fails every write once armed.
type failingKV struct {
	*kv.Memory
	fail bool
}

func (f *failingKV) Set(ctx context.Context, key string, v []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, key, v)
}

func item(id string, ts time.Time) model.ClipboardItem {
	return model.ClipboardItem{ID: id, Content: "content " + id, Type: model.TypeText, Timestamp: ts}
}

func TestStore_InsertGetAndDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, nil)

	require.NoError(t, s.Insert(ctx, model.ClipboardItem{ID: "a", Content: "x"}))
	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, model.TypeText, got.Type)
	require.True(t, got.Timestamp.Equal(t0))

	require.ErrorIs(t, s.Insert(ctx, model.ClipboardItem{ID: "a"}), errs.ErrAlreadyExists)
	require.ErrorIs(t, s.Insert(ctx, model.ClipboardItem{}), errs.ErrValidation)
	_, err = s.Get("missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_MutationsStampAndPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	s, clk := newStore(t, st)

	require.NoError(t, s.Insert(ctx, item("a", t0)))
	clk.advance(time.Minute)
	require.NoError(t, s.SetPinned(ctx, "a", true))
	require.NoError(t, s.Rename(ctx, "a", "  note "))
	require.NoError(t, s.SetTags(ctx, "a", []string{"b", "a", "b", ""}))
	clk.advance(time.Minute)
	require.NoError(t, s.Trash(ctx, "a"))

	require.ErrorIs(t, s.Trash(ctx, "nope"), errs.ErrNotFound)
	require.ErrorIs(t, s.Recover(ctx, "nope"), errs.ErrNotFound)

	reopened, _ := newStore(t, st)
	got, err := reopened.Get("a")
	require.NoError(t, err)
	require.True(t, got.IsPinned)
	require.True(t, got.IsTrashed)
	require.Equal(t, "note", got.DisplayName)
	require.Equal(t, []string{"a", "b"}, got.Tags)
	require.True(t, got.Timestamp.Equal(t0.Add(2*time.Minute)))

	require.NoError(t, reopened.Recover(ctx, "a"))
	got, _ = reopened.Get("a")
	require.False(t, got.IsTrashed)
}

func TestStore_UpdateReplacesAndStamps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clk := newStore(t, nil)
	require.NoError(t, s.Insert(ctx, item("a", t0)))

	clk.advance(time.Hour)
	upd := item("a", time.Time{})
	upd.Content = "edited"
	require.NoError(t, s.Update(ctx, upd))

	got, _ := s.Get("a")
	require.Equal(t, "edited", got.Content)
	require.True(t, got.Timestamp.Equal(t0.Add(time.Hour)))
	require.ErrorIs(t, s.Update(ctx, item("zzz", t0)), errs.ErrNotFound)
}

func TestStore_CaptureDedupes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clk := newStore(t, nil)

	first, err := s.Capture(ctx, "hello", "")
	require.NoError(t, err)
	clk.advance(time.Second)
	again, err := s.Capture(ctx, "hello", model.TypeText)
	require.NoError(t, err)

	require.Equal(t, first.ID, again.ID)
	require.True(t, again.Timestamp.After(first.Timestamp))
	require.Len(t, s.Items(), 1)

	_, err = s.Capture(ctx, "  ", model.TypeText)
	require.ErrorIs(t, err, errs.ErrValidation)

	// trashed copies do not absorb a new capture
	require.NoError(t, s.Trash(ctx, first.ID))
	third, err := s.Capture(ctx, "hello", model.TypeText)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)
}

func TestStore_ListFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, nil)

	a := item("a", t0)
	a.Tags = []string{"work"}
	b := item("b", t0.Add(time.Minute))
	b.DisplayName = "Grocery list"
	c := item("c", t0.Add(2*time.Minute))
	c.IsTrashed = true
	p := item("p", t0.Add(-time.Hour))
	p.IsPinned = true
	for _, it := range []model.ClipboardItem{a, b, c, p} {
		require.NoError(t, s.Insert(ctx, it))
	}

	ids := func(items []model.ClipboardItem) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	require.Equal(t, []string{"p", "b", "a"}, ids(s.List(Filter{})))
	require.Equal(t, []string{"c"}, ids(s.List(Filter{Scope: ScopeTrashed})))
	require.Equal(t, []string{"p", "c", "b", "a"}, ids(s.List(Filter{Scope: ScopeAll})))
	require.Equal(t, []string{"a"}, ids(s.List(Filter{Tag: "work"})))
	require.Equal(t, []string{"b"}, ids(s.List(Filter{Query: "grocery"})))
	require.Equal(t, []string{"p"}, ids(s.List(Filter{Limit: 1})))
}

func TestStore_PurgeQueuesRemoteDeleteAndReleasesBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	name, err := blobs.Put([]byte("png"))
	require.NoError(t, err)

	clk := &fakeClock{now: t0}
	s := New(kv.NewMemory(), zaptest.NewLogger(t), WithClock(clk.Now), WithBlobs(blobs))
	require.NoError(t, s.Load(ctx))

	img := model.ClipboardItem{ID: "img", Content: name, Type: model.TypeImage, Timestamp: t0}
	twin := model.ClipboardItem{ID: "twin", Content: name, Type: model.TypeImage, Timestamp: t0}
	require.NoError(t, s.Insert(ctx, img))
	require.NoError(t, s.Insert(ctx, twin))

	require.NoError(t, s.Purge(ctx, "img"))
	require.True(t, blobs.Exists(name), "still referenced by twin")
	require.NoError(t, s.Purge(ctx, "twin"))
	require.False(t, blobs.Exists(name))

	require.Equal(t, []model.PendingDelete{
		{Kind: model.KindItem, ID: "img"},
		{Kind: model.KindItem, ID: "twin"},
	}, s.PendingDeletes())
	require.ErrorIs(t, s.Purge(ctx, "img"), errs.ErrNotFound)
}

func TestStore_EmptyTrash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, nil)
	require.NoError(t, s.Insert(ctx, item("a", t0)))
	require.NoError(t, s.Insert(ctx, item("b", t0)))
	require.NoError(t, s.Trash(ctx, "a"))

	n, err := s.EmptyTrash(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, s.Items(), 1)
	require.True(t, s.IsPendingDelete(model.KindItem, "a"))

	n, err = s.EmptyTrash(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStore_PendingDeletesPersistAndClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	s, _ := newStore(t, st)
	require.NoError(t, s.Insert(ctx, item("a", t0)))
	require.NoError(t, s.Purge(ctx, "a"))

	reopened, _ := newStore(t, st)
	pend := reopened.PendingDeletes()
	require.Len(t, pend, 1)

	require.NoError(t, reopened.ClearPendingDeletes(ctx, pend))
	require.Empty(t, reopened.PendingDeletes())
	_, ok, err := st.Get(ctx, KeyPendingDeletes)
	require.NoError(t, err)
	require.False(t, ok)

	// re-inserting the id cancels its queued delete
	require.NoError(t, reopened.Insert(ctx, item("b", t0)))
	require.NoError(t, reopened.Purge(ctx, "b"))
	require.NoError(t, reopened.Insert(ctx, item("b", t0)))
	require.False(t, reopened.IsPendingDelete(model.KindItem, "b"))
}

func TestStore_PersistFailureIsReturned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := &failingKV{Memory: kv.NewMemory()}
	s, _ := newStore(t, st)

	st.fail = true
	err := s.Insert(ctx, item("a", t0))
	require.ErrorContains(t, err, "disk full")
	_, err = s.Get("a")
	require.ErrorIs(t, err, errs.ErrNotFound, "failed write rolls memory back")
}

func TestStore_LoadCorruptedBacksUpAndRefusesSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, KeySchemaVersion, []byte("3")))
	require.NoError(t, st.Set(ctx, KeyItems, []byte("{garbage")))

	s := New(st, zaptest.NewLogger(t))
	err := s.Load(ctx)
	var de *errs.DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, KeyItems, de.Key)
	require.Empty(t, s.Items())
	require.Error(t, s.LoadError())

	backup, ok, err := st.Get(ctx, KeyItemsBackup)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{garbage", string(backup))

	require.ErrorIs(t, s.Save(ctx), errs.ErrLoadFailed)
	require.ErrorIs(t, s.Insert(ctx, item("a", t0)), errs.ErrLoadFailed)
	raw, _, _ := st.Get(ctx, KeyItems)
	require.Equal(t, "{garbage", string(raw), "original kept until acknowledged")

	require.NoError(t, s.AcknowledgeLoadError(ctx))
	require.NoError(t, s.LoadError())
	raw, _, _ = st.Get(ctx, KeyItems)
	require.Equal(t, "[]", string(raw))

	require.NoError(t, s.Insert(ctx, item("a", t0)))
	raw, _, _ = st.Get(ctx, KeyItems)
	require.Contains(t, string(raw), `"id":"a"`)
}

func TestStore_RefusedWritesLeaveMemoryUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	seed, _ := newStore(t, st)
	require.NoError(t, seed.Insert(ctx, item("a", t0)))
	require.NoError(t, seed.SetTagColor(ctx, model.TagColor{Tag: "work", Red: 1}))
	require.NoError(t, st.Set(ctx, KeyTagColors, []byte("nope")))

	s := New(st, zaptest.NewLogger(t))
	require.Error(t, s.Load(ctx))
	before := s.List(Filter{Scope: ScopeAll})
	require.Len(t, before, 1)

	_, err := s.Capture(ctx, "fresh", model.TypeText)
	require.ErrorIs(t, err, errs.ErrLoadFailed)
	require.ErrorIs(t, s.Insert(ctx, item("b", t0)), errs.ErrLoadFailed)
	require.ErrorIs(t, s.Trash(ctx, "a"), errs.ErrLoadFailed)
	require.ErrorIs(t, s.Purge(ctx, "a"), errs.ErrLoadFailed)
	_, err = s.EmptyTrash(ctx)
	require.ErrorIs(t, err, errs.ErrLoadFailed)
	require.ErrorIs(t, s.SetTagColor(ctx, model.TagColor{Tag: "home"}), errs.ErrLoadFailed)
	_, err = s.ApplyRetentionPolicy(ctx, Retention{MaxAgeDays: 1})
	require.ErrorIs(t, err, errs.ErrLoadFailed)

	require.Equal(t, before, s.List(Filter{Scope: ScopeAll}))
	require.Empty(t, s.TagColors())
	require.Empty(t, s.PendingDeletes())
}

func TestStore_MutationsSeeOtherWritersOfTheSameStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	daemon, _ := newStore(t, st)
	cli, _ := newStore(t, st)

	captured, err := cli.Capture(ctx, "from the cli", model.TypeText)
	require.NoError(t, err)
	require.NoError(t, cli.SetTagColor(ctx, model.TagColor{Tag: "work", Blue: 1}))

	// the daemon's view predates the cli writes
	require.NoError(t, daemon.Insert(ctx, item("d", t0)))
	err = daemon.Transact(ctx, func(tx *Tx) error {
		tx.PutItem(item("remote", t0))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, cli.Purge(ctx, "d"))
	require.NoError(t, daemon.ClearPendingDeletes(ctx, []model.PendingDelete{{Kind: model.KindItem, ID: "nothing"}}))

	fresh, _ := newStore(t, st)
	_, err = fresh.Get(captured.ID)
	require.NoError(t, err, "cli capture survives daemon writes")
	_, err = fresh.Get("remote")
	require.NoError(t, err)
	_, err = fresh.Get("d")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.True(t, fresh.IsPendingDelete(model.KindItem, "d"), "cli purge survives daemon queue writes")
	require.Len(t, fresh.TagColors(), 1)
}

type countingLocker struct {
	held, locks int
}

func (l *countingLocker) TryLockContext(context.Context, time.Duration) (bool, error) {
	if l.held > 0 {
		return false, errors.New("already held")
	}
	l.held++
	l.locks++
	return true, nil
}

func (l *countingLocker) Unlock() error {
	l.held--
	return nil
}

func TestStore_WritesHoldTheLocker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := &countingLocker{}
	s := New(kv.NewMemory(), zaptest.NewLogger(t), WithLocker(l))
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.Insert(ctx, item("a", t0)))
	require.NoError(t, s.Trash(ctx, "a"))
	_, err := s.EmptyTrash(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, s.Recover(ctx, "a"), errs.ErrNotFound)

	require.Equal(t, 5, l.locks)
	require.Zero(t, l.held, "released after every write, failed ones included")
}

func TestStore_LoadNewerVersionIsDecodeError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, KeySchemaVersion, []byte("99")))
	require.NoError(t, st.Set(ctx, KeyItems, []byte(`[]`)))

	s := New(st, zaptest.NewLogger(t))
	var de *errs.DecodeError
	require.ErrorAs(t, s.Load(ctx), &de)
}

func TestStore_LoadMigratesV1AndPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	// no version key: a collection from before versions were recorded
	require.NoError(t, st.Set(ctx, KeyItems,
		[]byte(`[{"id":"1","content":"hi","timestamp":"2024-01-01T00:00:00Z","isPinned":true}]`)))

	s := New(st, zaptest.NewLogger(t))
	require.NoError(t, s.Load(ctx))
	got, err := s.Get("1")
	require.NoError(t, err)
	require.True(t, got.IsPinned)
	require.Nil(t, got.Tags)

	v, ok, err := st.Get(ctx, KeySchemaVersion)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", string(v))

	// loading again is a no-op
	again := New(st, zaptest.NewLogger(t))
	require.NoError(t, again.Load(ctx))
	require.Equal(t, s.Items(), again.Items())
}

func TestStore_LoadMigrationFailureBacksUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, KeySchemaVersion, []byte("1")))
	require.NoError(t, st.Set(ctx, KeyItems, []byte(`[{"id":"1"}]`)))

	s := New(st, zaptest.NewLogger(t))
	var me *errs.MigrationError
	require.ErrorAs(t, s.Load(ctx), &me)
	_, ok, _ := st.Get(ctx, KeyItemsBackup)
	require.True(t, ok)
}

func TestStore_LoadDedupesByNewest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, KeySchemaVersion, []byte("3")))
	require.NoError(t, st.Set(ctx, KeyItems, []byte(`[
		{"id":"1","content":"old","type":"text","timestamp":"2024-01-01T00:00:00Z"},
		{"id":"1","content":"new","type":"text","timestamp":"2024-02-01T00:00:00Z"}
	]`)))

	s := New(st, zaptest.NewLogger(t))
	require.NoError(t, s.Load(ctx))
	got, err := s.Get("1")
	require.NoError(t, err)
	require.Equal(t, "new", got.Content)
}

func TestStore_CorruptedTagColorsOnlyFlag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, KeyTagColors, []byte("nope")))

	s := New(st, zaptest.NewLogger(t))
	var de *errs.DecodeError
	require.ErrorAs(t, s.Load(ctx), &de)
	require.Equal(t, KeyTagColors, de.Key)
	_, ok, _ := st.Get(ctx, KeyTagColorsBackup)
	require.True(t, ok)
}
