// Package replicav1 defines the clipsync.v1.Replica gRPC service: its messages,
// the JSON codec they travel with and the client/server bindings.
package replicav1

import "time"

// Document is one stored record. Body is opaque to the server and is
// base64-encoded on the wire.
type Document struct {
	ID        string    `json:"id"`
	Body      []byte    `json:"body"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

type FetchPageRequest struct {
	Kind   string `json:"kind"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int32  `json:"limit"`
}

func (r *FetchPageRequest) GetKind() string {
	if r == nil {
		return ""
	}
	return r.Kind
}

func (r *FetchPageRequest) GetCursor() string {
	if r == nil {
		return ""
	}
	return r.Cursor
}

func (r *FetchPageRequest) GetLimit() int32 {
	if r == nil {
		return 0
	}
	return r.Limit
}

type FetchPageResponse struct {
	Documents  []Document `json:"documents"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type BatchWriteRequest struct {
	Kind      string     `json:"kind"`
	Documents []Document `json:"documents"`
}

func (r *BatchWriteRequest) GetKind() string {
	if r == nil {
		return ""
	}
	return r.Kind
}

func (r *BatchWriteRequest) GetDocuments() []Document {
	if r == nil {
		return nil
	}
	return r.Documents
}

type BatchWriteResponse struct {
	Written int32 `json:"written"`
}

type DeleteOneRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (r *DeleteOneRequest) GetKind() string {
	if r == nil {
		return ""
	}
	return r.Kind
}

func (r *DeleteOneRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.ID
}

type DeleteOneResponse struct{}

type StatsRequest struct{}

type StatsResponse struct {
	Counts   map[string]int64 `json:"counts"`
	MaxBatch int32            `json:"max_batch"`
}

func (r *StatsResponse) GetCounts() map[string]int64 {
	if r == nil {
		return nil
	}
	return r.Counts
}

func (r *StatsResponse) GetMaxBatch() int32 {
	if r == nil {
		return 0
	}
	return r.MaxBatch
}
