// Package model defines domain entities shared by the local store, the sync engine and the replica server.
package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ContentType classifies a clipboard payload.
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeURL   ContentType = "url"
	TypeImage ContentType = "image"
	TypePDF   ContentType = "pdf"
	TypeAudio ContentType = "audio"
	TypeFile  ContentType = "file"
)

// IsBinary reports whether Content holds a local blob filename instead of text.
// Binary payloads never leave the device.
func (t ContentType) IsBinary() bool {
	switch t {
	case TypeImage, TypePDF, TypeAudio, TypeFile:
		return true
	}
	return false
}

// ItemState is the soft-delete state of an item.
type ItemState int

const (
	StateActive ItemState = iota
	StateTrashed
)

func (s ItemState) String() string {
	if s == StateTrashed {
		return "trashed"
	}
	return "active"
}

// ClipboardItem is the unit of record. ID is the merge key between replicas.
type ClipboardItem struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	Type        ContentType `json:"type"`
	Timestamp   time.Time   `json:"timestamp"` // last modification, LWW tie-breaker
	IsPinned    bool        `json:"isPinned"`
	IsTrashed   bool        `json:"isTrashed"`
	DisplayName string      `json:"displayName,omitempty"`
	Tags        []string    `json:"tags,omitempty"` // sorted, unique
}

// NewItem builds an active, unpinned item with a fresh UUIDv4 id.
func NewItem(content string, typ ContentType, now time.Time) (ClipboardItem, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return ClipboardItem{}, err
	}
	if typ == "" {
		typ = TypeText
	}
	return ClipboardItem{
		ID:        id.String(),
		Content:   content,
		Type:      typ,
		Timestamp: Stamp(now),
	}, nil
}

// Stamp normalizes an instant the way every stored timestamp is normalized.
func Stamp(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

// State maps the trash flag onto the tagged state.
func (it ClipboardItem) State() ItemState {
	if it.IsTrashed {
		return StateTrashed
	}
	return StateActive
}

// Clone returns a copy that shares no slices with it.
func (it ClipboardItem) Clone() ClipboardItem {
	if it.Tags != nil {
		it.Tags = slices.Clone(it.Tags)
	}
	return it
}

// Equal compares all fields; timestamps compare as instants.
func (it ClipboardItem) Equal(o ClipboardItem) bool {
	return it.ID == o.ID &&
		it.Content == o.Content &&
		it.Type == o.Type &&
		it.Timestamp.Equal(o.Timestamp) &&
		it.IsPinned == o.IsPinned &&
		it.IsTrashed == o.IsTrashed &&
		it.DisplayName == o.DisplayName &&
		slices.Equal(it.Tags, o.Tags)
}

// NormalizeTags trims, drops empties, deduplicates and sorts. Empty input yields nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CompareItems orders pinned before unpinned, then newest first, then by id.
func CompareItems(a, b ClipboardItem) int {
	if a.IsPinned != b.IsPinned {
		if a.IsPinned {
			return -1
		}
		return 1
	}
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortItems sorts in place into the canonical display order.
func SortItems(items []ClipboardItem) { slices.SortFunc(items, CompareItems) }

// TagColor is the user-chosen color of a tag; components are in [0,1].
type TagColor struct {
	Tag   string  `json:"tag"`
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// Validate checks the tag name and component ranges.
func (c TagColor) Validate() error {
	if strings.TrimSpace(c.Tag) == "" {
		return errors.New("empty tag")
	}
	for name, v := range map[string]float64{"red": c.Red, "green": c.Green, "blue": c.Blue} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s component %v out of [0,1]", name, v)
		}
	}
	return nil
}

// SameColor reports whether both entries carry the same components.
func (c TagColor) SameColor(o TagColor) bool {
	return c.Red == o.Red && c.Green == o.Green && c.Blue == o.Blue
}
