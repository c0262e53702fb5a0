package localstore

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

// Scope selects items by trash state.
type Scope int

const (
	ScopeActive Scope = iota
	ScopeTrashed
	ScopeAll
)

// Filter narrows List results. The zero value lists all active items.
type Filter struct {
	Scope Scope
	Query string // case-insensitive substring of content or display name
	Tag   string
	Limit int
}

func (f Filter) match(it model.ClipboardItem) bool {
	switch f.Scope {
	case ScopeActive:
		if it.IsTrashed {
			return false
		}
	case ScopeTrashed:
		if !it.IsTrashed {
			return false
		}
	}
	if f.Tag != "" {
		found := false
		for _, t := range it.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(it.DisplayName), q) &&
			(it.Type.IsBinary() || !strings.Contains(strings.ToLower(it.Content), q)) {
			return false
		}
	}
	return true
}

// Items returns copies of every item in display order.
func (s *Store) Items() []model.ClipboardItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// List returns copies of the matching items in display order.
func (s *Store) List(f Filter) []model.ClipboardItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ClipboardItem, 0)
	for _, it := range s.snapshotLocked() {
		if !f.match(it) {
			continue
		}
		out = append(out, it)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Get returns a copy of the item with id.
func (s *Store) Get(id string) (model.ClipboardItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return model.ClipboardItem{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	return it.Clone(), nil
}

// Insert adds a new item. A zero timestamp is stamped with the current time.
func (s *Store) Insert(ctx context.Context, it model.ClipboardItem) error {
	if it.ID == "" {
		return fmt.Errorf("%w: empty item id", errs.ErrValidation)
	}
	it = it.Clone()
	if it.Type == "" {
		it.Type = model.TypeText
	}
	it.Tags = model.NormalizeTags(it.Tags)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, func(tx *Tx) error {
		if _, ok := s.items[it.ID]; ok {
			return fmt.Errorf("item %s: %w", it.ID, errs.ErrAlreadyExists)
		}
		if it.Timestamp.IsZero() {
			it.Timestamp = s.stamp()
		}
		tx.PutItem(it)
		s.unqueueLocked(model.KindItem, it.ID)
		tx.pendDirty = true
		return nil
	})
}

// Capture records new clipboard content. Content identical to an existing
// active item of the same type bumps that item to now instead of duplicating it.
func (s *Store) Capture(ctx context.Context, content string, typ model.ContentType) (model.ClipboardItem, error) {
	if typ == "" {
		typ = model.TypeText
	}
	if strings.TrimSpace(content) == "" {
		return model.ClipboardItem{}, fmt.Errorf("%w: empty content", errs.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var captured model.ClipboardItem
	err := s.commitLocked(ctx, func(tx *Tx) error {
		now := s.stamp()
		for id, it := range s.items {
			if it.IsTrashed || it.Type != typ || it.Content != content {
				continue
			}
			it.Timestamp = now
			tx.PutItem(it)
			captured = it
			s.log.Debug("capture matched existing item", zap.String("id", id))
			return nil
		}
		it, err := model.NewItem(content, typ, now)
		if err != nil {
			return fmt.Errorf("new item: %w", err)
		}
		tx.PutItem(it)
		captured = it
		return nil
	})
	if err != nil {
		return model.ClipboardItem{}, err
	}
	return captured.Clone(), nil
}

// Update replaces the stored item with the same id and stamps it with the current time.
func (s *Store) Update(ctx context.Context, it model.ClipboardItem) error {
	return s.mutate(ctx, it.ID, func(cur *model.ClipboardItem) {
		*cur = it.Clone()
		if cur.Type == "" {
			cur.Type = model.TypeText
		}
		cur.Tags = model.NormalizeTags(cur.Tags)
	})
}

// Trash moves an item to the trash. It stays in the collection and syncs.
func (s *Store) Trash(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(it *model.ClipboardItem) { it.IsTrashed = true })
}

// Recover moves an item out of the trash.
func (s *Store) Recover(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(it *model.ClipboardItem) { it.IsTrashed = false })
}

// SetPinned pins or unpins an item. Pinned items are exempt from retention.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) error {
	return s.mutate(ctx, id, func(it *model.ClipboardItem) { it.IsPinned = pinned })
}

// Rename sets the display name; an empty name clears it.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	return s.mutate(ctx, id, func(it *model.ClipboardItem) { it.DisplayName = strings.TrimSpace(name) })
}

// SetTags replaces the item's tags.
func (s *Store) SetTags(ctx context.Context, id string, tags []string) error {
	return s.mutate(ctx, id, func(it *model.ClipboardItem) { it.Tags = model.NormalizeTags(tags) })
}

// mutate applies fn to the current persisted item, stamps it and persists.
func (s *Store) mutate(ctx context.Context, id string, fn func(*model.ClipboardItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, func(tx *Tx) error {
		it, ok := s.items[id]
		if !ok {
			return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
		}
		it = it.Clone()
		fn(&it)
		it.ID = id
		it.Timestamp = s.stamp()
		tx.PutItem(it)
		return nil
	})
}

// Purge hard-deletes an item and queues its remote copy for deletion.
func (s *Store) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, func(tx *Tx) error {
		if _, ok := s.items[id]; !ok {
			return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
		}
		tx.remove([]string{id})
		return nil
	})
}

// EmptyTrash purges every trashed item and returns how many were removed.
func (s *Store) EmptyTrash(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.commitLocked(ctx, func(tx *Tx) error {
		var ids []string
		for id, it := range s.items {
			if it.IsTrashed {
				ids = append(ids, id)
			}
		}
		n = len(tx.remove(ids))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) blobReferencedLocked(name string) bool {
	for _, it := range s.items {
		if it.Type.IsBinary() && it.Content == name {
			return true
		}
	}
	return false
}

func (s *Store) releaseBlob(name string) {
	if s.blobs == nil || name == "" {
		return
	}
	if err := s.blobs.Remove(name); err != nil {
		s.log.Warn("remove blob", zap.String("blob", name), zap.Error(err))
	}
}
