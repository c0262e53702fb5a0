package localstore

import (
	"context"
	"slices"

	"github.com/and161185/clipsync/internal/model"
)

// PendingDeletes returns the queued remote deletes in queue order.
func (s *Store) PendingDeletes() []model.PendingDelete {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// IsPendingDelete reports whether a remote delete for kind/id is still queued.
func (s *Store) IsPendingDelete(kind model.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked(kind, id)
}

// ClearPendingDeletes drops confirmed deletes from the queue.
func (s *Store) ClearPendingDeletes(ctx context.Context, done []model.PendingDelete) error {
	if len(done) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, func(tx *Tx) error {
		for _, d := range done {
			s.unqueueLocked(d.Kind, d.ID)
		}
		tx.pendDirty = true
		return nil
	})
}

func (s *Store) pendingLocked(kind model.Kind, id string) bool {
	return slices.Contains(s.pending, model.PendingDelete{Kind: kind, ID: id})
}

func (s *Store) queueLocked(kind model.Kind, id string) {
	if !s.pendingLocked(kind, id) {
		s.pending = append(s.pending, model.PendingDelete{Kind: kind, ID: id})
	}
}

func (s *Store) unqueueLocked(kind model.Kind, id string) {
	s.pending = slices.DeleteFunc(s.pending, func(d model.PendingDelete) bool {
		return d.Kind == kind && d.ID == id
	})
}
