package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

// itemRecord is the remote body of an item. Pointer fields tell a missing key
// apart from a zero value.
type itemRecord struct {
	ID          *string    `json:"id"`
	Content     *string    `json:"content"`
	Type        *string    `json:"type,omitempty"`
	Timestamp   *time.Time `json:"timestamp"`
	IsPinned    *bool      `json:"isPinned,omitempty"`
	IsTrashed   *bool      `json:"isTrashed,omitempty"`
	DisplayName *string    `json:"displayName,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

type tagColorRecord struct {
	Tag   *string  `json:"tag"`
	Red   *float64 `json:"red"`
	Green *float64 `json:"green"`
	Blue  *float64 `json:"blue"`
}

// encodeItem serializes an item for the replica. Binary payload names are
// local-only and are sent as empty content.
func encodeItem(it model.ClipboardItem) ([]byte, error) {
	content := it.Content
	if it.Type.IsBinary() {
		content = ""
	}
	typ := string(it.Type)
	ts := model.Stamp(it.Timestamp)
	rec := itemRecord{
		ID:        &it.ID,
		Content:   &content,
		Type:      &typ,
		Timestamp: &ts,
		IsPinned:  &it.IsPinned,
		IsTrashed: &it.IsTrashed,
		Tags:      model.NormalizeTags(it.Tags),
	}
	if it.DisplayName != "" {
		rec.DisplayName = &it.DisplayName
	}
	return json.Marshal(rec)
}

func decodeItem(docID string, body []byte) (model.ClipboardItem, error) {
	var rec itemRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return model.ClipboardItem{}, err
	}
	switch {
	case rec.ID == nil || *rec.ID == "":
		return model.ClipboardItem{}, errors.New("missing id")
	case *rec.ID != docID:
		return model.ClipboardItem{}, fmt.Errorf("body id %q does not match document id", *rec.ID)
	case rec.Content == nil:
		return model.ClipboardItem{}, errors.New("missing content")
	case rec.Timestamp == nil:
		return model.ClipboardItem{}, errors.New("missing timestamp")
	}
	it := model.ClipboardItem{
		ID:        *rec.ID,
		Content:   *rec.Content,
		Type:      model.TypeText,
		Timestamp: model.Stamp(*rec.Timestamp),
		Tags:      model.NormalizeTags(rec.Tags),
	}
	if rec.Type != nil && *rec.Type != "" {
		it.Type = model.ContentType(*rec.Type)
	}
	if rec.IsPinned != nil {
		it.IsPinned = *rec.IsPinned
	}
	if rec.IsTrashed != nil {
		it.IsTrashed = *rec.IsTrashed
	}
	if rec.DisplayName != nil {
		it.DisplayName = *rec.DisplayName
	}
	return it, nil
}

func encodeTagColor(c model.TagColor) ([]byte, error) {
	return json.Marshal(tagColorRecord{Tag: &c.Tag, Red: &c.Red, Green: &c.Green, Blue: &c.Blue})
}

func decodeTagColor(docID string, body []byte) (model.TagColor, error) {
	var rec tagColorRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return model.TagColor{}, err
	}
	if rec.Tag == nil || rec.Red == nil || rec.Green == nil || rec.Blue == nil {
		return model.TagColor{}, errors.New("missing field")
	}
	if *rec.Tag != docID {
		return model.TagColor{}, fmt.Errorf("body tag %q does not match document id", *rec.Tag)
	}
	c := model.TagColor{Tag: *rec.Tag, Red: *rec.Red, Green: *rec.Green, Blue: *rec.Blue}
	if err := c.Validate(); err != nil {
		return model.TagColor{}, err
	}
	return c, nil
}

func recordErr(kind model.Kind, id string, err error) error {
	return &errs.RecordDecodeError{Kind: string(kind), ID: id, Err: err}
}
