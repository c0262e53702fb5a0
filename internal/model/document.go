package model

import "time"

// Kind scopes documents on the remote replica.
type Kind string

const (
	KindItem     Kind = "item"
	KindTagColor Kind = "tag_color"
)

// Kinds lists every record kind.
var Kinds = []Kind{KindItem, KindTagColor}

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool { return k == KindItem || k == KindTagColor }

// Document is the remote wire unit: an opaque body keyed by kind and id.
type Document struct {
	Kind      Kind
	ID        string
	Body      []byte
	UpdatedAt time.Time // server write time, informational only
}

// Page is one cursor step of a remote listing. An empty NextCursor means exhausted.
type Page struct {
	Documents  []Document
	NextCursor string
}

// ReplicaStats describes what one owner stores on the replica and the
// replica's write limit.
type ReplicaStats struct {
	Counts   map[Kind]int64
	MaxBatch int
}

// PendingDelete is a hard-deleted local record whose remote copy still has to go.
type PendingDelete struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}
