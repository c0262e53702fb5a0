package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/clipsync/internal/model"
)

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

// ListPage uses keyset pagination on id; one extra row tells whether more remain.
func (r *DocumentRepo) ListPage(
	ctx context.Context, owner uuid.UUID, kind model.Kind, after string, limit int,
) (model.Page, error) {
	const q = `SELECT id, body, updated_at FROM replica_documents WHERE owner_id=$1 AND kind=$2 AND id>$3 ORDER BY id ASC LIMIT $4`
	rows, err := r.db.Pool.Query(ctx, q, owner, string(kind), after, limit+1)
	if err != nil {
		return model.Page{}, err
	}
	defer rows.Close()

	docs := make([]model.Document, 0, limit)
	for rows.Next() {
		var (
			id   string
			body []byte
			ts   time.Time
		)
		if err = rows.Scan(&id, &body, &ts); err != nil {
			return model.Page{}, err
		}
		docs = append(docs, model.Document{Kind: kind, ID: id, Body: body, UpdatedAt: ts})
	}
	if err = rows.Err(); err != nil {
		return model.Page{}, err
	}

	var p model.Page
	if len(docs) > limit {
		docs = docs[:limit]
		p.NextCursor = docs[len(docs)-1].ID
	}
	p.Documents = docs
	return p, nil
}

// UpsertBatch inserts or overwrites every document atomically.
func (r *DocumentRepo) UpsertBatch(
	ctx context.Context, owner uuid.UUID, kind model.Kind, docs []model.Document,
) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ups = `INSERT INTO replica_documents (owner_id, kind, id, body) VALUES ($1,$2,$3,$4) ON CONFLICT (owner_id, kind, id) DO UPDATE SET body=EXCLUDED.body, updated_at=now()`
	for _, d := range docs {
		if _, err = tx.Exec(ctx, ups, owner, string(kind), d.ID, d.Body); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a document; zero affected rows is not an error.
func (r *DocumentRepo) Delete(ctx context.Context, owner uuid.UUID, kind model.Kind, id string) error {
	const q = `DELETE FROM replica_documents WHERE owner_id=$1 AND kind=$2 AND id=$3`
	_, err := r.db.Pool.Exec(ctx, q, owner, string(kind), id)
	return err
}

// Count returns the number of documents of kind for owner.
func (r *DocumentRepo) Count(ctx context.Context, owner uuid.UUID, kind model.Kind) (int64, error) {
	const q = `SELECT COUNT(*) FROM replica_documents WHERE owner_id=$1 AND kind=$2`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, owner, string(kind)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
