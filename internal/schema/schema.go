// Package schema encodes the local item collection and upgrades collections
// written by earlier schema versions.
//
// Versions are strictly additive:
//
//	v1  id, content, type, timestamp, isPinned
//	v2  + isTrashed, displayName
//	v3  + tags
//
// Fields introduced after the declared version are defaulted to their zero value.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

// CurrentVersion is the schema version written by Encode.
const CurrentVersion = 3

type itemV1 struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Type      string     `json:"type"`
	Timestamp *time.Time `json:"timestamp"`
	IsPinned  bool       `json:"isPinned"`
}

type itemV2 struct {
	itemV1
	IsTrashed   bool   `json:"isTrashed"`
	DisplayName string `json:"displayName"`
}

type itemV3 struct {
	itemV2
	Tags []string `json:"tags"`
}

// Encode serializes items at CurrentVersion in canonical order. The input is not modified.
func Encode(items []model.ClipboardItem) ([]byte, error) {
	out := make([]model.ClipboardItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
		out[i].Tags = model.NormalizeTags(out[i].Tags)
	}
	model.SortItems(out)
	return json.Marshal(out)
}

// Decode parses bytes written at CurrentVersion.
func Decode(raw []byte) ([]model.ClipboardItem, error) {
	var recs []itemV3
	if err := unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return convert(recs, func(r itemV3) (itemV1, model.ClipboardItem) {
		return r.itemV1, model.ClipboardItem{
			IsTrashed:   r.IsTrashed,
			DisplayName: r.DisplayName,
			Tags:        model.NormalizeTags(r.Tags),
		}
	})
}

// Migrate parses raw under the format of schema version from and returns the
// collection at CurrentVersion. It never partially applies: on any failure it
// returns a *errs.MigrationError and no items.
func Migrate(raw []byte, from int) ([]model.ClipboardItem, error) {
	var (
		items []model.ClipboardItem
		err   error
	)
	switch from {
	case 1:
		var recs []itemV1
		if err = unmarshal(raw, &recs); err == nil {
			items, err = convert(recs, func(r itemV1) (itemV1, model.ClipboardItem) {
				return r, model.ClipboardItem{}
			})
		}
	case 2:
		var recs []itemV2
		if err = unmarshal(raw, &recs); err == nil {
			items, err = convert(recs, func(r itemV2) (itemV1, model.ClipboardItem) {
				return r.itemV1, model.ClipboardItem{IsTrashed: r.IsTrashed, DisplayName: r.DisplayName}
			})
		}
	case CurrentVersion:
		items, err = Decode(raw)
	default:
		err = fmt.Errorf("unknown schema version %d (current %d)", from, CurrentVersion)
	}
	if err != nil {
		return nil, &errs.MigrationError{From: from, Err: err}
	}
	return items, nil
}

func unmarshal(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// convert maps versioned records onto the current model. split returns the v1
// core of a record plus the item carrying its newer fields.
func convert[T any](recs []T, split func(T) (itemV1, model.ClipboardItem)) ([]model.ClipboardItem, error) {
	out := make([]model.ClipboardItem, 0, len(recs))
	for i, r := range recs {
		core, it := split(r)
		if core.ID == "" {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
		if core.Timestamp == nil {
			return nil, fmt.Errorf("record %d (%s): missing timestamp", i, core.ID)
		}
		it.ID = core.ID
		it.Content = core.Content
		it.Type = model.ContentType(core.Type)
		if it.Type == "" {
			it.Type = model.TypeText
		}
		it.Timestamp = model.Stamp(*core.Timestamp)
		it.IsPinned = core.IsPinned
		out = append(out, it)
	}
	return out, nil
}
