package localstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/kv"
	"github.com/and161185/clipsync/internal/model"
)

func TestTransact_PersistsChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	s, _ := newStore(t, st)
	require.NoError(t, s.Insert(ctx, item("a", t0)))

	var evicted []model.ClipboardItem
	err := s.Transact(ctx, func(tx *Tx) error {
		remote := item("r", t0.Add(time.Hour))
		tx.PutItem(remote)
		tx.PutTagColor(model.TagColor{Tag: "work", Red: 1})
		evicted = tx.ApplyRetention(Retention{MaxItems: 1})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	require.Equal(t, "a", evicted[0].ID)

	reopened, _ := newStore(t, st)
	require.Len(t, reopened.Items(), 1)
	got, err := reopened.Get("r")
	require.NoError(t, err)
	require.True(t, got.Timestamp.Equal(t0.Add(time.Hour)), "remote timestamp kept verbatim")
	require.Len(t, reopened.TagColors(), 1)
	require.True(t, reopened.IsPendingDelete(model.KindItem, "a"))
}

func TestTransact_RollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, nil)
	require.NoError(t, s.Insert(ctx, item("a", t0)))

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx *Tx) error {
		tx.PutItem(item("b", t0))
		tx.ApplyRetention(Retention{MaxItems: 1})
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Len(t, s.Items(), 1)
	require.Equal(t, "a", s.Items()[0].ID)
	require.Empty(t, s.PendingDeletes())
}

func TestTransact_RefusedWhileLoadFlagged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, KeyItems, []byte("][")))
	s := New(st, nil)
	require.Error(t, s.Load(ctx))

	called := false
	err := s.Transact(ctx, func(*Tx) error { called = true; return nil })
	require.ErrorIs(t, err, errs.ErrLoadFailed)
	require.False(t, called)
}

func TestTagColors_SetDeleteValidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := kv.NewMemory()
	s, _ := newStore(t, st)

	require.NoError(t, s.SetTagColor(ctx, model.TagColor{Tag: " work ", Red: 0.5}))
	require.NoError(t, s.SetTagColor(ctx, model.TagColor{Tag: "home", Blue: 1}))
	require.ErrorIs(t, s.SetTagColor(ctx, model.TagColor{Tag: "bad", Red: 2}), errs.ErrValidation)
	require.ErrorIs(t, s.SetTagColor(ctx, model.TagColor{Tag: ""}), errs.ErrValidation)

	colors := s.TagColors()
	require.Len(t, colors, 2)
	require.Equal(t, "home", colors[0].Tag)
	require.Equal(t, "work", colors[1].Tag)

	require.NoError(t, s.DeleteTagColor(ctx, "work"))
	require.ErrorIs(t, s.DeleteTagColor(ctx, "work"), errs.ErrNotFound)
	require.True(t, s.IsPendingDelete(model.KindTagColor, "work"))

	reopened, _ := newStore(t, st)
	require.Len(t, reopened.TagColors(), 1)

	// setting it again cancels the queued delete
	require.NoError(t, reopened.SetTagColor(ctx, model.TagColor{Tag: "work"}))
	require.False(t, reopened.IsPendingDelete(model.KindTagColor, "work"))
}
