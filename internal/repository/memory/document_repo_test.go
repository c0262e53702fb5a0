package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/clipsync/internal/model"
)

func TestDocumentRepo_PagesInIDOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewDocumentRepo()
	owner := uuid.Must(uuid.NewV4())

	var docs []model.Document
	for i := 9; i >= 0; i-- {
		docs = append(docs, model.Document{ID: fmt.Sprintf("d%d", i), Body: []byte{byte(i)}})
	}
	require.NoError(t, r.UpsertBatch(ctx, owner, model.KindItem, docs))

	var got []string
	cursor := ""
	for {
		p, err := r.ListPage(ctx, owner, model.KindItem, cursor, 3)
		require.NoError(t, err)
		for _, d := range p.Documents {
			got = append(got, d.ID)
			require.False(t, d.UpdatedAt.IsZero())
		}
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	require.Equal(t, []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", "d9"}, got)
}

func TestDocumentRepo_ScopedByOwnerAndKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewDocumentRepo()
	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())

	require.NoError(t, r.UpsertBatch(ctx, alice, model.KindItem, []model.Document{{ID: "x", Body: []byte("a")}}))
	require.NoError(t, r.UpsertBatch(ctx, alice, model.KindTagColor, []model.Document{{ID: "x", Body: []byte("t")}}))

	n, err := r.Count(ctx, bob, model.KindItem)
	require.NoError(t, err)
	require.Zero(t, n)

	p, err := r.ListPage(ctx, alice, model.KindTagColor, "", 10)
	require.NoError(t, err)
	require.Len(t, p.Documents, 1)
	require.Equal(t, "t", string(p.Documents[0].Body))
}

func TestDocumentRepo_OverwriteAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewDocumentRepo()
	owner := uuid.Must(uuid.NewV4())

	require.NoError(t, r.UpsertBatch(ctx, owner, model.KindItem, []model.Document{{ID: "x", Body: []byte("1")}}))
	require.NoError(t, r.UpsertBatch(ctx, owner, model.KindItem, []model.Document{{ID: "x", Body: []byte("2")}}))
	p, err := r.ListPage(ctx, owner, model.KindItem, "", 10)
	require.NoError(t, err)
	require.Equal(t, "2", string(p.Documents[0].Body))

	require.NoError(t, r.Delete(ctx, owner, model.KindItem, "x"))
	require.NoError(t, r.Delete(ctx, owner, model.KindItem, "x"))
	require.NoError(t, r.Delete(ctx, uuid.Must(uuid.NewV4()), model.KindItem, "x"))
	n, _ := r.Count(ctx, owner, model.KindItem)
	require.Zero(t, n)
}
