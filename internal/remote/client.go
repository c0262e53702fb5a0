// Package remote talks to the replica: paginated fetch of every record,
// batched writes and single-record deletes, for items and tag colors.
package remote

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/clipsync/internal/crypto/clientcrypto"
	"github.com/and161185/clipsync/internal/errs"
	"github.com/and161185/clipsync/internal/model"
)

// DocumentStore is the replica's keyed-document capability.
type DocumentStore interface {
	// FetchPage lists up to limit documents of kind after cursor, ordered by id.
	FetchPage(ctx context.Context, kind model.Kind, cursor string, limit int) (model.Page, error)
	// BatchWrite upserts all documents atomically.
	BatchWrite(ctx context.Context, kind model.Kind, docs []model.Document) error
	// DeleteOne removes a document; a missing document is not an error.
	DeleteOne(ctx context.Context, kind model.Kind, id string) error
}

// Sealer encrypts record bodies. Optional.
type Sealer interface {
	Seal(kind model.Kind, id string, plaintext []byte) ([]byte, error)
	Open(kind model.Kind, id string, body []byte) ([]byte, error)
}

const (
	defaultPageSize  = 200
	defaultBatchSize = 500
)

// FetchStats describes one full listing.
type FetchStats struct {
	Fetched   int  // documents received
	Skipped   int  // documents that failed to decode
	Truncated bool // stopped at the page limit with more remaining
}

// Client is the replica client used by the sync coordinator.
type Client struct {
	store     DocumentStore
	sealer    Sealer
	log       *zap.Logger
	pageSize  int
	batchSize int
}

// Option configures a Client.
type Option func(*Client)

// WithSealer encrypts outgoing bodies and opens sealed incoming ones.
func WithSealer(s Sealer) Option { return func(c *Client) { c.sealer = s } }

// WithPageSize sets how many documents are requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithBatchSize caps documents per BatchWrite call.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// NewClient wraps store.
func NewClient(store DocumentStore, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{store: store, log: log, pageSize: defaultPageSize, batchSize: defaultBatchSize}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchItems lists every remote item. A positive pageLimit stops after that
// many documents even if more remain. Undecodable records are skipped and
// counted; any transport error fails the whole fetch with *errs.RemoteFetchError.
func (c *Client) FetchItems(ctx context.Context, pageLimit int) ([]model.ClipboardItem, FetchStats, error) {
	return fetchAll(ctx, c, model.KindItem, pageLimit, decodeItem)
}

// FetchTagColors lists every remote tag color.
func (c *Client) FetchTagColors(ctx context.Context) ([]model.TagColor, FetchStats, error) {
	return fetchAll(ctx, c, model.KindTagColor, 0, decodeTagColor)
}

func fetchAll[T any](ctx context.Context, c *Client, kind model.Kind, pageLimit int,
	decode func(id string, body []byte) (T, error)) ([]T, FetchStats, error) {
	var (
		out    []T
		stats  FetchStats
		cursor string
		seen   = make(map[string]struct{})
	)
	for {
		limit := c.pageSize
		if pageLimit > 0 && pageLimit-stats.Fetched < limit {
			limit = pageLimit - stats.Fetched
		}
		page, err := c.store.FetchPage(ctx, kind, cursor, limit)
		if err != nil {
			return nil, stats, &errs.RemoteFetchError{Kind: string(kind), Err: err}
		}

		for _, d := range page.Documents {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			stats.Fetched++

			v, err := decodeDoc(c, kind, d, decode)
			if err != nil {
				stats.Skipped++
				c.log.Warn("skipping remote record", zap.Error(err))
				continue
			}
			out = append(out, v)
		}

		if page.NextCursor == "" {
			return out, stats, nil
		}
		if page.NextCursor == cursor {
			return nil, stats, &errs.RemoteFetchError{Kind: string(kind),
				Err: fmt.Errorf("cursor %q did not advance", cursor)}
		}
		if pageLimit > 0 && stats.Fetched >= pageLimit {
			stats.Truncated = true
			c.log.Info("remote fetch stopped at page limit",
				zap.String("kind", string(kind)), zap.Int("limit", pageLimit))
			return out, stats, nil
		}
		cursor = page.NextCursor
	}
}

func decodeDoc[T any](c *Client, kind model.Kind, d model.Document, decode func(string, []byte) (T, error)) (T, error) {
	var zero T
	body := d.Body
	if clientcrypto.IsSealed(body) {
		if c.sealer == nil {
			return zero, recordErr(kind, d.ID, errors.New("sealed record but no passphrase configured"))
		}
		plain, err := c.sealer.Open(kind, d.ID, body)
		if err != nil {
			return zero, recordErr(kind, d.ID, err)
		}
		body = plain
	}
	v, err := decode(d.ID, body)
	if err != nil {
		return zero, recordErr(kind, d.ID, err)
	}
	return v, nil
}

// UpsertItems writes items in batches. On failure the returned
// *errs.RemoteWriteError counts the items not confirmed written.
func (c *Client) UpsertItems(ctx context.Context, items []model.ClipboardItem) error {
	docs := make([]model.Document, 0, len(items))
	for _, it := range items {
		d, err := c.encodeDoc(model.KindItem, it.ID, func() ([]byte, error) { return encodeItem(it) })
		if err != nil {
			return &errs.RemoteWriteError{Kind: string(model.KindItem), Count: len(items), Err: err}
		}
		docs = append(docs, d)
	}
	return c.writeAll(ctx, model.KindItem, docs)
}

// UpsertTagColors writes tag colors in batches.
func (c *Client) UpsertTagColors(ctx context.Context, colors []model.TagColor) error {
	docs := make([]model.Document, 0, len(colors))
	for _, tc := range colors {
		d, err := c.encodeDoc(model.KindTagColor, tc.Tag, func() ([]byte, error) { return encodeTagColor(tc) })
		if err != nil {
			return &errs.RemoteWriteError{Kind: string(model.KindTagColor), Count: len(colors), Err: err}
		}
		docs = append(docs, d)
	}
	return c.writeAll(ctx, model.KindTagColor, docs)
}

func (c *Client) encodeDoc(kind model.Kind, id string, encode func() ([]byte, error)) (model.Document, error) {
	body, err := encode()
	if err != nil {
		return model.Document{}, err
	}
	if c.sealer != nil {
		if body, err = c.sealer.Seal(kind, id, body); err != nil {
			return model.Document{}, err
		}
	}
	return model.Document{Kind: kind, ID: id, Body: body}, nil
}

func (c *Client) writeAll(ctx context.Context, kind model.Kind, docs []model.Document) error {
	for start := 0; start < len(docs); start += c.batchSize {
		end := min(start+c.batchSize, len(docs))
		if err := c.store.BatchWrite(ctx, kind, docs[start:end]); err != nil {
			return &errs.RemoteWriteError{Kind: string(kind), Count: len(docs) - start, Err: err}
		}
	}
	return nil
}

// Delete removes one remote record.
func (c *Client) Delete(ctx context.Context, kind model.Kind, id string) error {
	if err := c.store.DeleteOne(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}
