// Package service holds the replica server's business rules between transport and storage.
package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
	"github.com/and161185/clipsync/internal/repository"
)

// DocumentService defines operations over an owner's replica documents.
type DocumentService interface {
	// FetchPage lists documents of kind after cursor.
	FetchPage(ctx context.Context, owner uuid.UUID, kind model.Kind, cursor string, limit int) (model.Page, error)
	// BatchWrite upserts documents atomically.
	BatchWrite(ctx context.Context, owner uuid.UUID, kind model.Kind, docs []model.Document) error
	// DeleteOne removes a document.
	DeleteOne(ctx context.Context, owner uuid.UUID, kind model.Kind, id string) error
	// Stats counts the owner's documents per kind.
	Stats(ctx context.Context, owner uuid.UUID) (model.ReplicaStats, error)
}

const (
	defaultMaxBatch = 1000
	defaultMaxPage  = 500
	maxIDLen        = 256
	maxBodyLen      = 1 << 20
)

type DocumentServiceImpl struct {
	repo     repository.DocumentRepository
	maxBatch int
	maxPage  int
}

// NewDocumentService constructs DocumentService with batch and page limits.
func NewDocumentService(repo repository.DocumentRepository, maxBatch, maxPage int) *DocumentServiceImpl {
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	if maxPage <= 0 {
		maxPage = defaultMaxPage
	}
	return &DocumentServiceImpl{repo: repo, maxBatch: maxBatch, maxPage: maxPage}
}

func validation(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrValidation, fmt.Sprintf(format, a...))
}

func checkScope(owner uuid.UUID, kind model.Kind) error {
	if owner == uuid.Nil {
		return validation("empty owner")
	}
	if !kind.Valid() {
		return validation("unknown kind %q", kind)
	}
	return nil
}

// FetchPage clamps limit to [1, maxPage].
func (s *DocumentServiceImpl) FetchPage(ctx context.Context, owner uuid.UUID, kind model.Kind, cursor string, limit int) (model.Page, error) {
	if err := checkScope(owner, kind); err != nil {
		return model.Page{}, err
	}
	if limit <= 0 || limit > s.maxPage {
		limit = s.maxPage
	}
	return s.repo.ListPage(ctx, owner, kind, cursor, limit)
}

// BatchWrite validates input and delegates the atomic write to the repository.
// Validation rules:
// - len(docs) <= maxBatch
// - each id is non-empty, unique within the batch and at most 256 bytes
// - each body is non-empty and at most 1 MiB
func (s *DocumentServiceImpl) BatchWrite(ctx context.Context, owner uuid.UUID, kind model.Kind, docs []model.Document) error {
	if err := checkScope(owner, kind); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	if len(docs) > s.maxBatch {
		return validation("batch too large (%d > %d)", len(docs), s.maxBatch)
	}
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		switch {
		case d.ID == "":
			return validation("document[%d] empty id", i)
		case len(d.ID) > maxIDLen:
			return validation("document[%d] id too long", i)
		case len(d.Body) == 0:
			return validation("document[%d] empty body", i)
		case len(d.Body) > maxBodyLen:
			return validation("document[%d] body too large", i)
		}
		if _, dup := seen[d.ID]; dup {
			return validation("document[%d] duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return s.repo.UpsertBatch(ctx, owner, kind, docs)
}

// DeleteOne removes a single document.
func (s *DocumentServiceImpl) DeleteOne(ctx context.Context, owner uuid.UUID, kind model.Kind, id string) error {
	if err := checkScope(owner, kind); err != nil {
		return err
	}
	if id == "" {
		return validation("empty id")
	}
	return s.repo.Delete(ctx, owner, kind, id)
}

// Stats reports the owner's document count per kind and the batch limit
// clients must respect.
func (s *DocumentServiceImpl) Stats(ctx context.Context, owner uuid.UUID) (model.ReplicaStats, error) {
	if owner == uuid.Nil {
		return model.ReplicaStats{}, validation("empty owner")
	}
	st := model.ReplicaStats{Counts: make(map[model.Kind]int64, len(model.Kinds)), MaxBatch: s.maxBatch}
	for _, kind := range model.Kinds {
		n, err := s.repo.Count(ctx, owner, kind)
		if err != nil {
			return model.ReplicaStats{}, fmt.Errorf("count %s: %w", kind, err)
		}
		st.Counts[kind] = n
	}
	return st, nil
}
