// Package memory is an in-process DocumentRepository for development servers and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/clipsync/internal/model"
)

type key struct {
	owner uuid.UUID
	kind  model.Kind
}

// DocumentRepo keeps documents in maps; contents are lost on exit.
type DocumentRepo struct {
	mu   sync.RWMutex
	docs map[key]map[string]model.Document
	now  func() time.Time
}

// NewDocumentRepo returns an empty repository.
func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{docs: make(map[key]map[string]model.Document), now: time.Now}
}

func (r *DocumentRepo) ListPage(_ context.Context, owner uuid.UUID, kind model.Kind, after string, limit int) (model.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.docs[key{owner, kind}]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		if id > after {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var p model.Page
	if len(ids) > limit {
		ids = ids[:limit]
		p.NextCursor = ids[len(ids)-1]
	}
	p.Documents = make([]model.Document, 0, len(ids))
	for _, id := range ids {
		d := bucket[id]
		d.Body = slices.Clone(d.Body)
		p.Documents = append(p.Documents, d)
	}
	return p, nil
}

func (r *DocumentRepo) UpsertBatch(_ context.Context, owner uuid.UUID, kind model.Kind, docs []model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{owner, kind}
	bucket, ok := r.docs[k]
	if !ok {
		bucket = make(map[string]model.Document)
		r.docs[k] = bucket
	}
	now := r.now().UTC()
	for _, d := range docs {
		bucket[d.ID] = model.Document{Kind: kind, ID: d.ID, Body: slices.Clone(d.Body), UpdatedAt: now}
	}
	return nil
}

func (r *DocumentRepo) Delete(_ context.Context, owner uuid.UUID, kind model.Kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs[key{owner, kind}], id)
	return nil
}

func (r *DocumentRepo) Count(_ context.Context, owner uuid.UUID, kind model.Kind) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.docs[key{owner, kind}])), nil
}
