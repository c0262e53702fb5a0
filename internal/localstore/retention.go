package localstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/clipsync/internal/model"
)

// Retention bounds the collection. A zero field disables that policy.
type Retention struct {
	MaxAgeDays int
	MaxItems   int
}

// Enabled reports whether any policy is active.
func (r Retention) Enabled() bool { return r.MaxAgeDays > 0 || r.MaxItems > 0 }

// ApplyRetentionPolicy hard-deletes items outside the policy, queues their
// remote deletes and returns the evicted items.
func (s *Store) ApplyRetentionPolicy(ctx context.Context, r Retention) ([]model.ClipboardItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []model.ClipboardItem
	err := s.commitLocked(ctx, func(tx *Tx) error {
		evicted = tx.ApplyRetention(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// retainVictims applies the age policy, then the count policy, and returns the
// ids to evict. Pinned and trashed items are never candidates.
func (s *Store) retainVictims(r Retention) []string {
	if !r.Enabled() {
		return nil
	}

	var victims []string
	if r.MaxAgeDays > 0 {
		cutoff := s.now().Add(-time.Duration(r.MaxAgeDays) * 24 * time.Hour)
		for id, it := range s.items {
			if evictable(it) && it.Timestamp.Before(cutoff) {
				victims = append(victims, id)
			}
		}
	}

	if r.MaxItems > 0 {
		aged := make(map[string]bool, len(victims))
		for _, id := range victims {
			aged[id] = true
		}
		var active int
		var candidates []model.ClipboardItem
		for id, it := range s.items {
			if it.IsTrashed || aged[id] {
				continue
			}
			active++
			if evictable(it) {
				candidates = append(candidates, it)
			}
		}
		if excess := active - r.MaxItems; excess > 0 {
			// least recently modified first
			slices.SortFunc(candidates, func(a, b model.ClipboardItem) int {
				if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
					return c
				}
				return cmp.Compare(a.ID, b.ID)
			})
			if excess > len(candidates) {
				s.log.Warn("retention bound unreachable, remaining items are pinned",
					zap.Int("active", active), zap.Int("max_items", r.MaxItems))
				excess = len(candidates)
			}
			for _, it := range candidates[:excess] {
				victims = append(victims, it.ID)
			}
		}
	}

	if len(victims) > 0 {
		s.log.Info("retention evicting items", zap.Int("count", len(victims)))
	}
	return victims
}

func evictable(it model.ClipboardItem) bool { return !it.IsPinned && !it.IsTrashed }
