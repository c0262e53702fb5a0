package localstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

// TagColors returns all entries sorted by tag.
func (s *Store) TagColors() []model.TagColor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tagColorsLocked()
}

// SetTagColor creates or replaces the color of a tag.
func (s *Store) SetTagColor(ctx context.Context, c model.TagColor) error {
	c.Tag = strings.TrimSpace(c.Tag)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, func(tx *Tx) error {
		tx.PutTagColor(c)
		s.unqueueLocked(model.KindTagColor, c.Tag)
		tx.pendDirty = true
		return nil
	})
}

// DeleteTagColor removes a tag's color and queues its remote delete.
func (s *Store) DeleteTagColor(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, func(tx *Tx) error {
		if _, ok := s.colors[tag]; !ok {
			return fmt.Errorf("tag color %q: %w", tag, errs.ErrNotFound)
		}
		delete(s.colors, tag)
		s.queueLocked(model.KindTagColor, tag)
		tx.colorsDirty = true
		tx.pendDirty = true
		return nil
	})
}
