package model

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestNewItem_Defaults(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.FixedZone("x", 3600))

	it, err := NewItem("hello", "", now)
	require.NoError(t, err)
	_, err = uuid.FromString(it.ID)
	require.NoError(t, err)
	require.Equal(t, TypeText, it.Type)
	require.Equal(t, time.UTC, it.Timestamp.Location())
	require.Equal(t, 123000000, it.Timestamp.Nanosecond())
	require.Equal(t, StateActive, it.State())
}

func TestSortItems_PinnedFirstThenNewest(t *testing.T) {
	t.Parallel()
	ts := func(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
	items := []ClipboardItem{
		{ID: "a", Timestamp: ts(1)},
		{ID: "b", Timestamp: ts(5), IsPinned: true},
		{ID: "c", Timestamp: ts(3)},
		{ID: "d", Timestamp: ts(2), IsPinned: true},
		{ID: "e", Timestamp: ts(3)},
	}
	SortItems(items)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	require.Equal(t, []string{"b", "d", "c", "e", "a"}, ids)

	for i := 1; i < len(items); i++ {
		require.LessOrEqual(t, CompareItems(items[i-1], items[i]), 0)
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()
	require.Nil(t, NormalizeTags(nil))
	require.Nil(t, NormalizeTags([]string{" ", ""}))
	require.Equal(t, []string{"a", "b"}, NormalizeTags([]string{"b", " a", "b", "a "}))
}

func TestClipboardItem_CloneAndEqual(t *testing.T) {
	t.Parallel()
	a := ClipboardItem{ID: "1", Tags: []string{"x"}, Timestamp: time.UnixMilli(10)}
	b := a.Clone()
	require.True(t, a.Equal(b))
	b.Tags[0] = "y"
	require.Equal(t, "x", a.Tags[0])
	require.False(t, a.Equal(b))

	c := a
	c.Timestamp = a.Timestamp.In(time.FixedZone("z", 7200))
	require.True(t, a.Equal(c))
}

func TestTagColor_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, TagColor{Tag: "work", Red: 1, Green: 0, Blue: 0.5}.Validate())
	require.Error(t, TagColor{Tag: " "}.Validate())
	require.Error(t, TagColor{Tag: "x", Green: 1.2}.Validate())
	require.Error(t, TagColor{Tag: "x", Blue: -0.1}.Validate())
}

func TestContentType_IsBinary(t *testing.T) {
	t.Parallel()
	require.True(t, TypeImage.IsBinary())
	require.True(t, TypePDF.IsBinary())
	require.False(t, TypeText.IsBinary())
	require.False(t, TypeURL.IsBinary())
	require.True(t, KindItem.Valid())
	require.False(t, Kind("other").Valid())
}
