package remote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/clipsync/internal/crypto/clientcrypto"
	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

// fakeStore is a keyset-paginated document store with failure injection.
type fakeStore struct {
	docs      map[model.Kind]map[string][]byte
	fetchErr  error
	failAfter int // fail FetchPage once this many pages were served; 0 = never
	writeErr  error
	deleteErr error
	pages     int
	batches   [][]model.Document
	deleted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[model.Kind]map[string][]byte{
		model.KindItem:     {},
		model.KindTagColor: {},
	}}
}

func (f *fakeStore) FetchPage(_ context.Context, kind model.Kind, cursor string, limit int) (model.Page, error) {
	if f.fetchErr != nil {
		return model.Page{}, f.fetchErr
	}
	if f.failAfter > 0 && f.pages >= f.failAfter {
		return model.Page{}, errors.New("connection reset")
	}
	f.pages++
	ids := make([]string, 0, len(f.docs[kind]))
	for id := range f.docs[kind] {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	var p model.Page
	if len(ids) > limit {
		ids = ids[:limit]
		p.NextCursor = ids[len(ids)-1]
	}
	for _, id := range ids {
		p.Documents = append(p.Documents, model.Document{Kind: kind, ID: id, Body: f.docs[kind][id]})
	}
	return p, nil
}

func (f *fakeStore) BatchWrite(_ context.Context, kind model.Kind, docs []model.Document) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.batches = append(f.batches, docs)
	for _, d := range docs {
		f.docs[kind][d.ID] = d.Body
	}
	return nil
}

func (f *fakeStore) DeleteOne(_ context.Context, kind model.Kind, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, string(kind)+"/"+id)
	delete(f.docs[kind], id)
	return nil
}

var ts = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seedItems(t *testing.T, f *fakeStore, n int) {
	t.Helper()
	for i := range n {
		it := model.ClipboardItem{ID: fmt.Sprintf("id-%03d", i), Content: "c", Type: model.TypeText, Timestamp: ts}
		body, err := encodeItem(it)
		require.NoError(t, err)
		f.docs[model.KindItem][it.ID] = body
	}
}

func TestFetchItems_PaginationCompleteness(t *testing.T) {
	t.Parallel()
	const n = 23
	for _, size := range []int{1, 2, 5, 22, 23, 24, 100} {
		t.Run(fmt.Sprintf("page=%d", size), func(t *testing.T) {
			t.Parallel()
			f := newFakeStore()
			seedItems(t, f, n)
			c := NewClient(f, zaptest.NewLogger(t), WithPageSize(size))

			items, stats, err := c.FetchItems(context.Background(), 0)
			require.NoError(t, err)
			require.Len(t, items, n)
			require.Equal(t, n, stats.Fetched)
			require.Zero(t, stats.Skipped)
			require.False(t, stats.Truncated)

			seen := map[string]int{}
			for _, it := range items {
				seen[it.ID]++
			}
			require.Len(t, seen, n)
			for id, cnt := range seen {
				require.Equal(t, 1, cnt, id)
			}
		})
	}
}

func TestFetchItems_PageLimitTruncates(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	seedItems(t, f, 50)
	c := NewClient(f, zaptest.NewLogger(t), WithPageSize(7))

	items, stats, err := c.FetchItems(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 10)
	require.True(t, stats.Truncated)

	// a limit covering everything is not truncated
	items, stats, err = c.FetchItems(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, items, 50)
	require.False(t, stats.Truncated)
}

func TestFetchItems_SkipsRecordMissingContent(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	seedItems(t, f, 3)
	f.docs[model.KindItem]["broken"] = []byte(`{"id":"broken","timestamp":"2024-01-01T00:00:00Z"}`)
	f.docs[model.KindItem]["garbage"] = []byte(`not json`)
	f.docs[model.KindItem]["null-content"] = []byte(`{"id":"null-content","content":null,"timestamp":"2024-01-01T00:00:00Z"}`)

	c := NewClient(f, zaptest.NewLogger(t), WithPageSize(2))
	items, stats, err := c.FetchItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, 3, stats.Skipped)
	require.Equal(t, 6, stats.Fetched)
}

func TestFetchItems_MissingContentScenario(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	f.docs[model.KindItem]["1"] = []byte(`{"id":"1","content":"A","timestamp":"2024-01-01T00:00:00Z"}`)
	f.docs[model.KindItem]["2"] = []byte(`{"id":"2","timestamp":"2024-01-01T00:00:00Z"}`)

	items, stats, err := NewClient(f, nil).FetchItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "1", items[0].ID)
	require.Equal(t, 1, stats.Skipped)
}

func TestFetchItems_TransportErrorFailsWholeFetch(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	seedItems(t, f, 10)
	f.failAfter = 2
	c := NewClient(f, zaptest.NewLogger(t), WithPageSize(3))

	items, _, err := c.FetchItems(context.Background(), 0)
	require.Nil(t, items, "no partial result")
	var fe *errs.RemoteFetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "item", fe.Kind)
}

type stuckStore struct{ *fakeStore }

func (s stuckStore) FetchPage(context.Context, model.Kind, string, int) (model.Page, error) {
	return model.Page{NextCursor: "same"}, nil
}

func TestFetchItems_CursorMustAdvance(t *testing.T) {
	t.Parallel()
	c := NewClient(stuckStore{newFakeStore()}, zaptest.NewLogger(t))
	_, _, err := c.FetchItems(context.Background(), 0)
	var fe *errs.RemoteFetchError
	require.ErrorAs(t, err, &fe)
}

func TestUpsertItems_BinaryContentStaysLocal(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	c := NewClient(f, zaptest.NewLogger(t))
	img := model.ClipboardItem{ID: "img", Content: "0123abcd", Type: model.TypeImage, Timestamp: ts}
	txt := model.ClipboardItem{ID: "txt", Content: "hello", Type: model.TypeText, Timestamp: ts, Tags: []string{"x"}}

	require.NoError(t, c.UpsertItems(context.Background(), []model.ClipboardItem{img, txt}))
	require.NotContains(t, string(f.docs[model.KindItem]["img"]), "0123abcd")

	items, _, err := c.FetchItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "", items[0].Content)
	require.Equal(t, model.TypeImage, items[0].Type)
	require.True(t, txt.Equal(items[1]))
}

func TestUpsertItems_BatchesAndReportsUnsent(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	c := NewClient(f, zaptest.NewLogger(t), WithBatchSize(2))
	items := make([]model.ClipboardItem, 5)
	for i := range items {
		items[i] = model.ClipboardItem{ID: fmt.Sprint(i), Content: "c", Type: model.TypeText, Timestamp: ts}
	}
	require.NoError(t, c.UpsertItems(context.Background(), items))
	require.Len(t, f.batches, 3)

	f.writeErr = errors.New("unavailable")
	err := c.UpsertItems(context.Background(), items)
	var we *errs.RemoteWriteError
	require.ErrorAs(t, err, &we)
	require.Equal(t, 5, we.Count)
	require.Equal(t, "item", we.Kind)
}

func TestTagColors_RoundTripAndValidation(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	c := NewClient(f, zaptest.NewLogger(t))
	require.NoError(t, c.UpsertTagColors(context.Background(), []model.TagColor{{Tag: "work", Red: 0.25, Green: 0.5, Blue: 1}}))
	f.docs[model.KindTagColor]["bad"] = []byte(`{"tag":"bad","red":7,"green":0,"blue":0}`)
	f.docs[model.KindTagColor]["partial"] = []byte(`{"tag":"partial","red":0.1}`)

	colors, stats, err := c.FetchTagColors(context.Background())
	require.NoError(t, err)
	require.Equal(t, []model.TagColor{{Tag: "work", Red: 0.25, Green: 0.5, Blue: 1}}, colors)
	require.Equal(t, 2, stats.Skipped)
}

func TestSealedBodies(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	sealer := clientcrypto.NewSealer([]byte("pass"), []byte("owner"))
	c := NewClient(f, zaptest.NewLogger(t), WithSealer(sealer))
	it := model.ClipboardItem{ID: "s", Content: "secret", Type: model.TypeText, Timestamp: ts}

	require.NoError(t, c.UpsertItems(context.Background(), []model.ClipboardItem{it}))
	require.False(t, strings.Contains(string(f.docs[model.KindItem]["s"]), "secret"))

	// plaintext records from before sealing was enabled still decode
	f.docs[model.KindItem]["p"] = []byte(`{"id":"p","content":"plain","timestamp":"2024-01-01T00:00:00Z"}`)
	items, stats, err := c.FetchItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Zero(t, stats.Skipped)

	// a client without the passphrase skips sealed records
	plain := NewClient(f, zaptest.NewLogger(t))
	items, stats, err = plain.FetchItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, stats.Skipped)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	f := newFakeStore()
	c := NewClient(f, zaptest.NewLogger(t))
	require.NoError(t, c.Delete(context.Background(), model.KindItem, "x"))
	require.Equal(t, []string{"item/x"}, f.deleted)

	f.deleteErr = errors.New("timeout")
	require.ErrorContains(t, c.Delete(context.Background(), model.KindTagColor, "y"), "tag_color y")
}
