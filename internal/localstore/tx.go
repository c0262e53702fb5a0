package localstore

import (
	"context"
	"slices"

	"github.com/and161185/clipsync/internal/model"
)

// Tx is a view of the store held under its lock for the duration of Transact.
// It must not escape the callback.
type Tx struct {
	s           *Store
	itemsDirty  bool
	colorsDirty bool
	pendDirty   bool
	orphans     []string // blobs to release once the commit is persisted
}

// Transact runs fn with exclusive access to the current persisted collection
// and persists whatever fn changed. If fn fails, in-memory state is rolled
// back and nothing is written. A flagged load failure refuses the transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, fn)
}

func (tx *Tx) persist(ctx context.Context) error {
	if tx.itemsDirty {
		if err := tx.s.persistItems(ctx); err != nil {
			return err
		}
	}
	if tx.colorsDirty {
		if err := tx.s.persistColors(ctx); err != nil {
			return err
		}
	}
	if tx.pendDirty {
		return tx.s.persistPending(ctx)
	}
	return nil
}

// Items returns copies of all items in display order.
func (tx *Tx) Items() []model.ClipboardItem { return tx.s.snapshotLocked() }

// PutItem inserts or replaces an item, keeping its timestamp at stored precision.
func (tx *Tx) PutItem(it model.ClipboardItem) {
	it = it.Clone()
	it.Tags = model.NormalizeTags(it.Tags)
	it.Timestamp = model.Stamp(it.Timestamp)
	tx.s.items[it.ID] = it
	tx.itemsDirty = true
}

// TagColors returns all tag colors sorted by tag.
func (tx *Tx) TagColors() []model.TagColor { return tx.s.tagColorsLocked() }

// PutTagColor inserts or replaces a tag color.
func (tx *Tx) PutTagColor(c model.TagColor) {
	tx.s.colors[c.Tag] = c
	tx.colorsDirty = true
}

// IsPendingDelete reports whether kind/id awaits a remote delete.
func (tx *Tx) IsPendingDelete(kind model.Kind, id string) bool {
	return tx.s.pendingLocked(kind, id)
}

// ApplyRetention evicts items outside r and queues their remote deletes.
func (tx *Tx) ApplyRetention(r Retention) []model.ClipboardItem {
	return tx.remove(tx.s.retainVictims(r))
}

// remove drops items, queues their remote deletes and schedules orphaned
// blobs for release.
func (tx *Tx) remove(ids []string) []model.ClipboardItem {
	s := tx.s
	removed := make([]model.ClipboardItem, 0, len(ids))
	for _, id := range ids {
		it, ok := s.items[id]
		if !ok {
			continue
		}
		delete(s.items, id)
		s.queueLocked(model.KindItem, id)
		removed = append(removed, it)
	}
	if len(removed) == 0 {
		return nil
	}
	for _, it := range removed {
		if it.Type.IsBinary() && it.Content != "" && !s.blobReferencedLocked(it.Content) &&
			!slices.Contains(tx.orphans, it.Content) {
			tx.orphans = append(tx.orphans, it.Content)
		}
	}
	tx.itemsDirty = true
	tx.pendDirty = true
	return removed
}
