package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/clipsync/internal/model"
)

// DocumentRepository stores replica documents scoped by owner and kind.
type DocumentRepository interface {
	// ListPage returns up to limit documents with id > after, ordered by id.
	// NextCursor is set only when more documents remain.
	ListPage(ctx context.Context, owner uuid.UUID, kind model.Kind, after string, limit int) (model.Page, error)

	// UpsertBatch writes all documents in one transaction.
	UpsertBatch(ctx context.Context, owner uuid.UUID, kind model.Kind, docs []model.Document) error

	// Delete removes a document. Deleting a missing document succeeds.
	Delete(ctx context.Context, owner uuid.UUID, kind model.Kind, id string) error

	// Count returns how many documents of kind the owner stores.
	Count(ctx context.Context, owner uuid.UUID, kind model.Kind) (int64, error)
}
